// Package contacts stores leads submitted through the public form.
package contacts

import (
	"context"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Contact) (*models.Contact, error)
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	List(ctx context.Context, f models.ContactFilter) ([]models.Contact, int, error)
	Update(ctx context.Context, id string, upd models.ContactUpdate) (*models.Contact, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, recent, months int) (*models.DashboardStats, error)
}
