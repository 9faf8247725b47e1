package messages

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const messageSelect = `SELECT m.id, m.contact_id, m.user_id, u.username, c.full_name,
		m.message, m.message_type, m.is_read, m.created_at
	FROM contact_messages m
	JOIN contacts c ON c.id = m.contact_id
	LEFT JOIN users u ON u.id = m.user_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*models.ContactMessage, error) {
	m := &models.ContactMessage{}
	err := row.Scan(&m.ID, &m.ContactID, &m.UserID, &m.Username, &m.ContactName,
		&m.Message, &m.MessageType, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	query :=
		`INSERT INTO contact_messages (contact_id, user_id, message, message_type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, is_read, created_at`

	err := r.db.QueryRowContext(ctx, query, m.ContactID, m.UserID, m.Message, m.MessageType).
		Scan(&m.ID, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return m, nil
}

func (r *PostgresRepository) ListByContact(ctx context.Context, contactID string, limit, offset int) ([]models.ContactMessage, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages WHERE contact_id = $1`, contactID).Scan(&total)
	if err != nil {
		return nil, 0, dbx.WrapError(err)
	}

	query := messageSelect + ` WHERE m.contact_id = $1 ORDER BY m.created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, contactID, limit, offset)
	if err != nil {
		return nil, 0, dbx.WrapError(err)
	}
	defer rows.Close()

	out := make([]models.ContactMessage, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, dbx.WrapError(err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbx.WrapError(err)
	}
	return out, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Message != nil {
		add("message", *upd.Message)
	}
	if upd.MessageType != nil {
		add("message_type", *upd.MessageType)
	}
	if upd.IsRead != nil {
		add("is_read", *upd.IsRead)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE contact_messages SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return dbx.WrapError(err)
	}
	n, err := dbx.RowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, contactID, userID string) (int64, error) {
	query :=
		`UPDATE contact_messages SET is_read = TRUE
		 WHERE contact_id = $1 AND is_read = FALSE AND (user_id IS NULL OR user_id <> $2)`

	res, err := r.db.ExecContext(ctx, query, contactID, userID)
	if err != nil {
		return 0, dbx.WrapError(err)
	}
	return dbx.RowsAffected(res)
}

func (r *PostgresRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	query :=
		`SELECT COUNT(*) FROM contact_messages
		 WHERE is_read = FALSE AND (user_id IS NULL OR user_id <> $1)`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, dbx.WrapError(err)
	}
	return n, nil
}
