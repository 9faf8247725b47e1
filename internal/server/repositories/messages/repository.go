// Package messages stores the conversation thread attached to each contact.
package messages

import (
	"context"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error)
	GetByID(ctx context.Context, id string) (*models.ContactMessage, error)
	ListByContact(ctx context.Context, contactID string, limit, offset int) ([]models.ContactMessage, int, error)
	Update(ctx context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error)
	Delete(ctx context.Context, id string) error
	// MarkRead flags the thread read, skipping messages written by userID.
	MarkRead(ctx context.Context, contactID, userID string) (int64, error)
	// UnreadCount counts unread messages not written by userID.
	UnreadCount(ctx context.Context, userID string) (int, error)
}
