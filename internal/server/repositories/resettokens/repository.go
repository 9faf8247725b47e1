// Package resettokens stores password reset tokens by their SHA-256 hash.
package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// InvalidateForUser marks every unused token of userID as used.
	InvalidateForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	// FindValid returns an unused, unexpired token without modifying it.
	FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	// Consume atomically marks a valid token used and returns its owner.
	// ErrorNotFound means the token was unknown, expired or already used.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
}
