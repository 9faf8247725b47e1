// Package handlers implements the dashboard's HTTP endpoints on top of the
// services layer.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/middleware"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthService interface {
	Login(ctx context.Context, identifier, password string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, identifier string) error
	ValidateResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type UserService interface {
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, page, limit int) (*models.Page[models.User], error)
	Update(ctx context.Context, caller models.Identity, id string, in services.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, caller models.Identity, id string) error
}

type ContactService interface {
	CreatePublic(ctx context.Context, in services.NewContactInput) (*models.Contact, error)
	List(ctx context.Context, f models.ContactFilter) (*models.Page[models.Contact], error)
	ListAssignedTo(ctx context.Context, userID string, f models.ContactFilter) (*models.Page[models.Contact], error)
	Get(ctx context.Context, id string) (*models.Contact, error)
	Update(ctx context.Context, caller models.Identity, id string, upd models.ContactUpdate) (*models.Contact, error)
	Assign(ctx context.Context, caller models.Identity, id, assigneeID string) (*models.Contact, error)
	Delete(ctx context.Context, caller models.Identity, id string) error
	Stats(ctx context.Context) (*models.DashboardStats, error)
	SendFollowUp(ctx context.Context, caller models.Identity, id, subject, text string) (*models.Contact, error)
	SendEmailTemplate(ctx context.Context, caller models.Identity, id string, kind notify.TemplateKind) error
}

type MessageService interface {
	ListByContact(ctx context.Context, contactID string, page, limit int) (*models.Page[models.ContactMessage], error)
	Create(ctx context.Context, caller models.Identity, contactID, text string, typ models.MessageType) (*models.ContactMessage, error)
	Update(ctx context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error)
	Delete(ctx context.Context, id string) error
	MarkRead(ctx context.Context, caller models.Identity, contactID string) (int64, error)
	UnreadCount(ctx context.Context, caller models.Identity) (int, error)
}

type ExportService interface {
	Export(ctx context.Context, caller models.Identity, f models.ContactFilter) (*services.ExportResult, error)
}

// caller returns the authenticated identity or aborts with 401.
func caller(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.MsgAuthRequired, nil)
	}
	return id, ok
}

// pathID reads a UUID path parameter or aborts with 400.
func pathID(c *gin.Context, name string) (string, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.MsgValidationFailed,
			[]response.FieldError{{Field: name, Message: "must be a valid id"}})
		return "", false
	}
	return id.String(), true
}

// pageQuery reads page and limit; missing values are left at zero for the
// services to default.
func pageQuery(c *gin.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", common.ErrorValidation, name)
	}
	return v, nil
}
