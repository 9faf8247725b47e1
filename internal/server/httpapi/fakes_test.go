package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
)

var testSecret = []byte("router-test-secret")

type fakeAuth struct {
	users         map[string]string // identifier -> password
	loginInternal bool
	forgotErr     error
	forgotCalls   []string
	resetErr      error
	validTokens   map[string]bool
	validateErr   error
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (*services.LoginResult, error) {
	if f.loginInternal {
		return nil, common.ErrorInternal
	}
	if pw, ok := f.users[identifier]; !ok || pw != password {
		return nil, common.ErrInvalidCredentials
	}
	u := &models.User{ID: "9b2f6c1e-3d4a-4c8e-8f0a-1b2c3d4e5f60", Username: identifier, Email: identifier + "@example.com",
		PasswordHash: "$2a$10$secret", Role: models.RoleAgent, IsActive: true}
	tok, err := auth.GenerateToken(u.Identity(), testSecret, time.Hour)
	if err != nil {
		return nil, err
	}
	return &services.LoginResult{Token: tok, User: u}, nil
}

func (f *fakeAuth) ForgotPassword(_ context.Context, identifier string) error {
	f.forgotCalls = append(f.forgotCalls, identifier)
	return f.forgotErr
}

func (f *fakeAuth) ValidateResetToken(_ context.Context, token string) (bool, error) {
	if f.validateErr != nil {
		return false, f.validateErr
	}
	return f.validTokens[token], nil
}

func (f *fakeAuth) ResetPassword(_ context.Context, token, newPassword string) error {
	return f.resetErr
}

func (f *fakeAuth) VerifyToken(token string) (*models.Identity, error) {
	return auth.ParseToken(token, testSecret)
}

type fakeUsers struct {
	created   *services.CreateUserInput
	updated   *services.UpdateUserInput
	deleted   string
	deleteErr error
}

func (f *fakeUsers) Create(_ context.Context, in services.CreateUserInput) (*models.User, error) {
	f.created = &in
	return &models.User{ID: "new", Username: in.Username, Email: in.Email, PasswordHash: "hash", Role: in.Role}, nil
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: "someone", PasswordHash: "hash", Role: models.RoleAgent, IsActive: true}, nil
}

func (f *fakeUsers) List(_ context.Context, page, limit int) (*models.Page[models.User], error) {
	return &models.Page[models.User]{Items: []models.User{{ID: "1", Username: "a"}}, Total: 1, Page: 1, Limit: 10}, nil
}

func (f *fakeUsers) Update(_ context.Context, caller models.Identity, id string, in services.UpdateUserInput) (*models.User, error) {
	if caller.ID != id && !auth.ManagerOrAdmin.Allows(caller.Role) {
		return nil, common.ErrForbidden
	}
	f.updated = &in
	return &models.User{ID: id}, nil
}

func (f *fakeUsers) Delete(_ context.Context, caller models.Identity, id string) error {
	f.deleted = id
	return f.deleteErr
}

type fakeContacts struct {
	created    *services.NewContactInput
	createErr  error
	lastFilter models.ContactFilter
	mineFor    string
	updated    *models.ContactUpdate
	assignedTo *string
	followUp   string
	followErr  error
	template   notify.TemplateKind
	deleted    string
}

func (f *fakeContacts) CreatePublic(_ context.Context, in services.NewContactInput) (*models.Contact, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &in
	return &models.Contact{ID: "c1", FullName: in.FullName, Status: models.StatusNotAttended}, nil
}

func (f *fakeContacts) List(_ context.Context, flt models.ContactFilter) (*models.Page[models.Contact], error) {
	f.lastFilter = flt
	return &models.Page[models.Contact]{Total: 0, Page: 1, Limit: 10}, nil
}

func (f *fakeContacts) ListAssignedTo(_ context.Context, userID string, flt models.ContactFilter) (*models.Page[models.Contact], error) {
	f.mineFor = userID
	f.lastFilter = flt
	return &models.Page[models.Contact]{Page: 1, Limit: 10}, nil
}

func (f *fakeContacts) Get(_ context.Context, id string) (*models.Contact, error) {
	return &models.Contact{ID: id}, nil
}

func (f *fakeContacts) Update(_ context.Context, _ models.Identity, id string, upd models.ContactUpdate) (*models.Contact, error) {
	f.updated = &upd
	return &models.Contact{ID: id}, nil
}

func (f *fakeContacts) Assign(_ context.Context, _ models.Identity, id, assigneeID string) (*models.Contact, error) {
	f.assignedTo = &assigneeID
	return &models.Contact{ID: id}, nil
}

func (f *fakeContacts) Delete(_ context.Context, _ models.Identity, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeContacts) Stats(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{Total: 3}, nil
}

func (f *fakeContacts) SendFollowUp(_ context.Context, _ models.Identity, id, subject, text string) (*models.Contact, error) {
	if f.followErr != nil {
		return nil, f.followErr
	}
	f.followUp = text
	return &models.Contact{ID: id, Status: models.StatusSent}, nil
}

func (f *fakeContacts) SendEmailTemplate(_ context.Context, _ models.Identity, id string, kind notify.TemplateKind) error {
	f.template = kind
	return nil
}

type fakeMessages struct {
	created  string
	typ      models.MessageType
	markedBy string
}

func (f *fakeMessages) ListByContact(_ context.Context, contactID string, page, limit int) (*models.Page[models.ContactMessage], error) {
	return &models.Page[models.ContactMessage]{Items: []models.ContactMessage{{ID: "m1", ContactID: contactID}}, Total: 1, Page: 1, Limit: 10}, nil
}

func (f *fakeMessages) Create(_ context.Context, _ models.Identity, contactID, text string, typ models.MessageType) (*models.ContactMessage, error) {
	f.created, f.typ = text, typ
	return &models.ContactMessage{ID: "m2", ContactID: contactID, Message: text, MessageType: typ}, nil
}

func (f *fakeMessages) Update(_ context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error) {
	return &models.ContactMessage{ID: id}, nil
}

func (f *fakeMessages) Delete(context.Context, string) error { return nil }

func (f *fakeMessages) MarkRead(_ context.Context, caller models.Identity, contactID string) (int64, error) {
	f.markedBy = caller.ID
	return 4, nil
}

func (f *fakeMessages) UnreadCount(context.Context, models.Identity) (int, error) { return 7, nil }

type fakeExports struct {
	err error
}

func (f *fakeExports) Export(_ context.Context, _ models.Identity, flt models.ContactFilter) (*services.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.ExportResult{Key: "exports/contacts/x.csv", URL: "https://s3.example.com/x", Count: 2}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }
