package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

const (
	statsRecent = 5
	statsMonths = 6
)

// ContactNotifier tells the team and the contact about pipeline events.
// The event methods return immediately; the Send/Post methods block until
// delivery.
type ContactNotifier interface {
	NewContact(ctx context.Context, c *models.Contact)
	StatusChanged(ctx context.Context, c *models.Contact, from, to models.ContactStatus, by string)
	Assigned(ctx context.Context, c *models.Contact, assignee, by string)
	SendFollowUp(ctx context.Context, c *models.Contact, subject, text, sender string) error
	PostEmailTemplate(ctx context.Context, c *models.Contact, kind notify.TemplateKind, by string) error
}

type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type NewContactInput struct {
	FullName     string
	Email        string
	Phone        string
	Message      string
	Priority     models.Priority
	Source       string
	CaptchaToken string
	RemoteIP     string
}

type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    ContactNotifier
	captcha     CaptchaVerifier
	paging      paging
	logger      logging.Logger
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	notifier ContactNotifier, captcha CaptchaVerifier, logger logging.Logger) *ContactService {
	return &ContactService{
		db:          db,
		repomanager: m,
		notifier:    notifier,
		captcha:     captcha,
		paging:      newPaging(cfg),
		logger:      logger.With("module", "contacts"),
	}
}

// CreatePublic stores a submission from the public form after the captcha
// check passes, then announces it.
func (s *ContactService) CreatePublic(ctx context.Context, in NewContactInput) (*models.Contact, error) {
	if err := s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP); err != nil {
		return nil, err
	}

	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", common.ErrorValidation, in.Priority)
	}
	if strings.TrimSpace(in.Source) == "" {
		in.Source = models.DefaultContactSource
	}

	c, err := s.repomanager.Contacts(s.db).Create(ctx, &models.Contact{
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:    strings.TrimSpace(in.Phone),
		Message:  strings.TrimSpace(in.Message),
		Status:   models.StatusNotAttended,
		Priority: in.Priority,
		Source:   in.Source,
	})
	if err != nil {
		return nil, storageError("create contact", err)
	}

	s.logger.Info(ctx, "contact created", "contact_id", c.ID, "source", c.Source)
	s.notifier.NewContact(ctx, c)
	return c, nil
}

func validateFilter(f models.ContactFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", common.ErrorValidation, f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", common.ErrorValidation, f.Priority)
	}
	if o := strings.ToLower(f.SortOrder); o != "" && o != "asc" && o != "desc" {
		return fmt.Errorf("%w: sort_order must be asc or desc", common.ErrorValidation)
	}
	return nil
}

func (s *ContactService) List(ctx context.Context, f models.ContactFilter) (*models.Page[models.Contact], error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	f.Page, f.Limit = s.paging.normalize(f.Page, f.Limit)

	items, total, err := s.repomanager.Contacts(s.db).List(ctx, f)
	if err != nil {
		return nil, storageError("list contacts", err)
	}
	return &models.Page[models.Contact]{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// ListAssignedTo lists the contacts assigned to userID.
func (s *ContactService) ListAssignedTo(ctx context.Context, userID string, f models.ContactFilter) (*models.Page[models.Contact], error) {
	f.AssignedTo = userID
	return s.List(ctx, f)
}

func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	c, err := s.repomanager.Contacts(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get contact", err)
	}
	return c, nil
}

// activeAssignee loads the account a contact is about to be assigned to.
func (s *ContactService) activeAssignee(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: assignee not found or inactive", common.ErrorValidation)
		}
		return nil, storageError("get assignee", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: assignee not found or inactive", common.ErrorValidation)
	}
	return u, nil
}

// Update edits status, priority and notes. Changing the assignee here is
// held to the same roles as Assign.
func (s *ContactService) Update(ctx context.Context, caller models.Identity, id string, upd models.ContactUpdate) (*models.Contact, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	if (upd.AssignedTo != nil || upd.ClearAssignee) && !auth.ManagerOrAdmin.Allows(caller.Role) {
		return nil, common.ErrForbidden
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, *upd.Status)
	}
	if upd.Priority != nil && !upd.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", common.ErrorValidation, *upd.Priority)
	}
	if upd.AssignedTo != nil {
		if _, err := s.activeAssignee(ctx, *upd.AssignedTo); err != nil {
			return nil, err
		}
	}

	repo := s.repomanager.Contacts(s.db)
	before, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("get contact", err)
	}

	after, err := repo.Update(ctx, id, upd)
	if err != nil {
		return nil, storageError("update contact", err)
	}

	if after.Status != before.Status {
		s.logger.Info(ctx, "contact status changed", "contact_id", id, "from", before.Status, "to", after.Status, "by", caller.ID)
		s.notifier.StatusChanged(ctx, after, before.Status, after.Status, caller.Username)
	}
	return after, nil
}

// Assign hands the contact to assigneeID, or unassigns it when assigneeID is
// empty.
func (s *ContactService) Assign(ctx context.Context, caller models.Identity, id, assigneeID string) (*models.Contact, error) {
	repo := s.repomanager.Contacts(s.db)

	if assigneeID == "" {
		c, err := repo.Update(ctx, id, models.ContactUpdate{ClearAssignee: true})
		if err != nil {
			return nil, storageError("unassign contact", err)
		}
		s.logger.Info(ctx, "contact unassigned", "contact_id", id, "by", caller.ID)
		return c, nil
	}

	assignee, err := s.activeAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	c, err := repo.Update(ctx, id, models.ContactUpdate{AssignedTo: &assignee.ID})
	if err != nil {
		return nil, storageError("assign contact", err)
	}

	s.logger.Info(ctx, "contact assigned", "contact_id", id, "assignee", assignee.ID, "by", caller.ID)
	s.notifier.Assigned(ctx, c, assignee.Username, caller.Username)
	return c, nil
}

func (s *ContactService) Delete(ctx context.Context, caller models.Identity, id string) error {
	if err := s.repomanager.Contacts(s.db).Delete(ctx, id); err != nil {
		return storageError("delete contact", err)
	}
	s.logger.Info(ctx, "contact deleted", "contact_id", id, "by", caller.ID)
	return nil
}

func (s *ContactService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	st, err := s.repomanager.Contacts(s.db).Stats(ctx, statsRecent, statsMonths)
	if err != nil {
		return nil, storageError("contact stats", err)
	}
	return st, nil
}

// SendFollowUp emails text to the contact, then marks it sent and records
// the email in its message thread.
func (s *ContactService) SendFollowUp(ctx context.Context, caller models.Identity, id, subject, text string) (*models.Contact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", common.ErrorValidation)
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendFollowUp(ctx, c, subject, text, caller.Username); err != nil {
		if errors.Is(err, common.ErrNotificationUnavailable) {
			return nil, err
		}
		s.logger.Error(ctx, "follow-up email failed", "contact_id", id, "error", err)
		return nil, fmt.Errorf("%w: follow-up email not delivered", common.ErrorInternal)
	}

	sent := models.StatusSent
	var updated *models.Contact
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		updated, err = s.repomanager.Contacts(tx).Update(ctx, id, models.ContactUpdate{Status: &sent})
		if err != nil {
			return err
		}
		_, err = s.repomanager.Messages(tx).Create(ctx, &models.ContactMessage{
			ContactID:   id,
			UserID:      &caller.ID,
			Message:     text,
			MessageType: models.MessageOutgoing,
		})
		return err
	})
	if err != nil {
		return nil, storageError("record follow-up", err)
	}

	s.logger.Info(ctx, "follow-up sent", "contact_id", id, "by", caller.ID)
	if c.Status != sent {
		s.notifier.StatusChanged(ctx, updated, c.Status, sent, caller.Username)
	}
	return updated, nil
}

// SendEmailTemplate shares a prepared email for the contact with the team.
func (s *ContactService) SendEmailTemplate(ctx context.Context, caller models.Identity, id string, kind notify.TemplateKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown template %q", common.ErrorValidation, kind)
	}

	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.notifier.PostEmailTemplate(ctx, c, kind, caller.Username); err != nil {
		if errors.Is(err, common.ErrNotificationUnavailable) {
			return err
		}
		s.logger.Error(ctx, "email template post failed", "contact_id", id, "error", err)
		return fmt.Errorf("%w: template not delivered", common.ErrorInternal)
	}
	return nil
}
