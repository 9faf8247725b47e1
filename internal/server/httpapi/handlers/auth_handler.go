package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	msgForgotSent     = "If an account with that username or email exists, a password reset link has been sent."
	msgResetDone      = "Password has been reset successfully"
	msgLoginSucceeded = "Login successful"
	msgLoggedOut      = "Logged out successfully"
)

// AuthResult is the body of the credential endpoints.
type AuthResult struct {
	Success bool             `json:"success"`
	Token   string           `json:"token,omitempty"`
	User    *models.Identity `json:"user,omitempty"`
	Message string           `json:"message,omitempty"`
}

// TokenValidity is the body of the reset token probe.
type TokenValidity struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type AuthHandler struct {
	auth   AuthService
	users  UserService
	logger logging.Logger
}

func NewAuthHandler(auth AuthService, users UserService, logger logging.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, logger: logger.With("module", "http.auth")}
}

type LoginRequest struct {
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login answers every credential failure with the same status and body.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResult{Message: "username and password are required"})
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Username
	}
	if strings.TrimSpace(identifier) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, AuthResult{Message: "username and password are required"})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, AuthResult{Message: response.MsgInvalidCredential})
			return
		}
		h.logger.Error(c.Request.Context(), "login failed", "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, AuthResult{Message: response.MsgInternal})
		return
	}

	user := res.User.Identity()
	c.JSON(http.StatusOK, AuthResult{Success: true, Token: res.Token, User: &user, Message: msgLoginSucceeded})
}

type ForgotPasswordRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
}

// ForgotPassword replies identically whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResult{Message: "identifier is required"})
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if strings.TrimSpace(identifier) == "" {
		c.JSON(http.StatusBadRequest, AuthResult{Message: "identifier is required"})
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), identifier); err != nil {
		h.logger.Error(c.Request.Context(), "forgot password failed", "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, AuthResult{Message: response.MsgInternal})
		return
	}
	c.JSON(http.StatusOK, AuthResult{Success: true, Message: msgForgotSent})
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AuthResult{Message: "token and newPassword are required"})
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, AuthResult{Success: true, Message: msgResetDone})
	case errors.Is(err, common.ErrPasswordTooShort),
		errors.Is(err, common.ErrPasswordTooLong),
		errors.Is(err, common.ErrInvalidResetToken),
		errors.Is(err, common.ErrAccountInactive):
		c.JSON(http.StatusBadRequest, AuthResult{Message: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, AuthResult{Message: response.MsgInternal})
	}
}

type ValidateResetTokenRequest struct {
	Token string `json:"token"`
}

// ValidateResetToken checks a reset token without spending it.
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	var req ValidateResetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, TokenValidity{Message: "token is required"})
		return
	}

	ok, err := h.auth.ValidateResetToken(c.Request.Context(), req.Token)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, TokenValidity{Message: response.MsgInternal})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, TokenValidity{Message: common.ErrInvalidResetToken.Error()})
		return
	}
	c.JSON(http.StatusOK, TokenValidity{Valid: true})
}

// Logout is stateless; clients drop their token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, AuthResult{Success: true, Message: msgLoggedOut})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := caller(c)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u, "")
}
