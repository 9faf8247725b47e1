// Package response renders the JSON envelope shared by every dashboard
// endpoint and maps service errors to HTTP statuses.
package response

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

// Envelope is the body of every dashboard response.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
	Details    any         `json:"details,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

const (
	MsgAuthRequired      = "authentication required"
	MsgInvalidToken      = "invalid token"
	MsgTokenExpired      = "token expired"
	MsgForbidden         = "insufficient permissions"
	MsgInternal          = "internal server error"
	MsgTooManyRequests   = "too many requests, please try again later"
	MsgValidationFailed  = "invalid request"
	MsgNotFound          = "resource not found"
	MsgAlreadyExists     = "resource already exists"
	MsgNotConfigured     = "service not configured"
	MsgCaptchaFailed     = "reCAPTCHA verification failed"
	MsgInvalidCredential = "invalid credentials"
)

func OK(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

func Created(c *gin.Context, data any, message string) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Page writes one page of items with its pagination block.
func Page[T any](c *gin.Context, p *models.Page[T]) {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    items,
		Pagination: &Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages(),
		},
	})
}

// Fail aborts the request with status and a failure envelope.
func Fail(c *gin.Context, status int, message string, details any) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: message, Message: message, Details: details})
}

// FieldError is one entry of a validation failure's details.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aborts with 400 and per-field details.
func ValidationError(c *gin.Context, err error) {
	Fail(c, http.StatusBadRequest, MsgValidationFailed, FieldErrors(err))
}

// StatusFor maps a service error to its HTTP status and client-safe message.
// Internal errors never carry their text to the client.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrPasswordTooShort),
		errors.Is(err, common.ErrPasswordTooLong),
		errors.Is(err, common.ErrInvalidResetToken),
		errors.Is(err, common.ErrAccountInactive):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrCaptchaFailed):
		return http.StatusBadRequest, MsgCaptchaFailed
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, MsgInvalidCredential
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, MsgTokenExpired
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, MsgInvalidToken
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, MsgAuthRequired
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, MsgForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, MsgNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, MsgAlreadyExists
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, MsgTooManyRequests
	case errors.Is(err, common.ErrNotificationUnavailable),
		errors.Is(err, common.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, MsgInternal
}

// Error writes err as a failure envelope.
func Error(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	_ = c.Error(err)
	Fail(c, status, msg, nil)
}
