package models

import "time"

// PasswordResetToken is a single-use credential. TokenHash is the SHA-256 of
// the value mailed to the user; the raw value is never stored.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsValid reports whether the token can still be redeemed at now.
func (t *PasswordResetToken) IsValid(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
