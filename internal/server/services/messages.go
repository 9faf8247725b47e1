package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
)

// MessageService manages the conversation thread of each contact.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	paging      paging
	logger      logging.Logger
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *MessageService {
	return &MessageService{
		db:          db,
		repomanager: m,
		paging:      newPaging(cfg),
		logger:      logger.With("module", "messages"),
	}
}

// ListByContact returns the thread oldest first.
func (s *MessageService) ListByContact(ctx context.Context, contactID string, page, limit int) (*models.Page[models.ContactMessage], error) {
	if _, err := s.repomanager.Contacts(s.db).GetByID(ctx, contactID); err != nil {
		return nil, storageError("get contact", err)
	}

	page, limit = s.paging.normalize(page, limit)
	items, total, err := s.repomanager.Messages(s.db).ListByContact(ctx, contactID, limit, (page-1)*limit)
	if err != nil {
		return nil, storageError("list messages", err)
	}
	return &models.Page[models.ContactMessage]{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *MessageService) Create(ctx context.Context, caller models.Identity, contactID, text string, typ models.MessageType) (*models.ContactMessage, error) {
	if typ == "" {
		typ = models.MessageNote
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", common.ErrorValidation, typ)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", common.ErrorValidation)
	}

	m, err := s.repomanager.Messages(s.db).Create(ctx, &models.ContactMessage{
		ContactID:   contactID,
		UserID:      &caller.ID,
		Message:     text,
		MessageType: typ,
	})
	if err != nil {
		return nil, storageError("create message", err)
	}

	s.logger.Debug(ctx, "message created", "message_id", m.ID, "contact_id", contactID)
	return m, nil
}

func (s *MessageService) Update(ctx context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrorValidation)
	}
	if upd.MessageType != nil && !upd.MessageType.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", common.ErrorValidation, *upd.MessageType)
	}
	if upd.Message != nil && strings.TrimSpace(*upd.Message) == "" {
		return nil, fmt.Errorf("%w: message must not be empty", common.ErrorValidation)
	}

	m, err := s.repomanager.Messages(s.db).Update(ctx, id, upd)
	if err != nil {
		return nil, storageError("update message", err)
	}
	return m, nil
}

func (s *MessageService) Delete(ctx context.Context, id string) error {
	if err := s.repomanager.Messages(s.db).Delete(ctx, id); err != nil {
		return storageError("delete message", err)
	}
	return nil
}

// MarkRead flags the contact's thread read for caller and returns how many
// messages changed.
func (s *MessageService) MarkRead(ctx context.Context, caller models.Identity, contactID string) (int64, error) {
	n, err := s.repomanager.Messages(s.db).MarkRead(ctx, contactID, caller.ID)
	if err != nil {
		return 0, storageError("mark read", err)
	}
	return n, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, caller models.Identity) (int, error) {
	n, err := s.repomanager.Messages(s.db).UnreadCount(ctx, caller.ID)
	if err != nil {
		return 0, storageError("unread count", err)
	}
	return n, nil
}
