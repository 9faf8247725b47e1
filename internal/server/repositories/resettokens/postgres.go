package resettokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query :=
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
		 VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt); err != nil {
		return dbx.WrapError(err)
	}
	return nil
}

func (r *PostgresRepository) InvalidateForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	query :=
		`UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		 WHERE user_id = $1 AND used = FALSE`

	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, dbx.WrapError(err)
	}
	return dbx.RowsAffected(res)
}

func (r *PostgresRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	query :=
		`SELECT id, user_id, token_hash, expires_at, used, created_at
		 FROM password_reset_tokens
		 WHERE token_hash = $1 AND used = FALSE AND expires_at > $2`

	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, now).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return t, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	query :=
		`UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		 WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
		 RETURNING user_id`

	var userID string
	if err := r.db.QueryRowContext(ctx, query, tokenHash, now).Scan(&userID); err != nil {
		return "", dbx.WrapError(err)
	}
	return userID, nil
}
