// Package users stores staff accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetActiveByLogin matches login against username or email.
	GetActiveByLogin(ctx context.Context, login string) (*models.User, error)
	GetActiveByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.User, int, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	// UpdatePassword only touches active accounts; ErrorNotFound otherwise.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}
