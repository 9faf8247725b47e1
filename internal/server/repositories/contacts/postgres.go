package contacts

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

const contactSelect = `SELECT c.id, c.full_name, c.email, c.phone, c.message, c.status, c.priority,
		c.assigned_to, u.username, c.notes, c.source, c.created_at, c.updated_at
	FROM contacts c
	LEFT JOIN users u ON u.id = c.assigned_to`

// sortColumns whitelists the columns a caller may order by.
var sortColumns = map[string]string{
	"id":         "c.id",
	"full_name":  "c.full_name",
	"email":      "c.email",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
	"status":     "c.status",
	"priority":   "c.priority",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*models.Contact, error) {
	c := &models.Contact{}
	err := row.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Message, &c.Status, &c.Priority,
		&c.AssignedTo, &c.AssignedUsername, &c.Notes, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	query :=
		`INSERT INTO contacts (full_name, email, phone, message, status, priority, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		c.FullName, c.Email, c.Phone, c.Message, c.Status, c.Priority, c.Source).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, contactSelect+` WHERE c.id = $1`, id))
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	return c, nil
}

// whereClause renders the filter conditions shared by List and its count.
func whereClause(f models.ContactFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(c.full_name ILIKE $%[1]d OR c.email ILIKE $%[1]d OR c.phone ILIKE $%[1]d OR c.message ILIKE $%[1]d)", n))
	}
	if f.Status != "" {
		add("c.status = $%d", f.Status)
	}
	if f.Priority != "" {
		add("c.priority = $%d", f.Priority)
	}
	if f.AssignedTo != "" {
		add("c.assigned_to = $%d", f.AssignedTo)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(f models.ContactFilter) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "c.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func (r *PostgresRepository) List(ctx context.Context, f models.ContactFilter) ([]models.Contact, int, error) {
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts c`+where, args...).Scan(&total); err != nil {
		return nil, 0, dbx.WrapError(err)
	}

	args = append(args, f.Limit, f.Offset())
	query := contactSelect + where + orderClause(f) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dbx.WrapError(err)
	}
	defer rows.Close()

	out := make([]models.Contact, 0, f.Limit)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, dbx.WrapError(err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbx.WrapError(err)
	}
	return out, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.ContactUpdate) (*models.Contact, error) {
	if upd.Empty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	switch {
	case upd.ClearAssignee:
		sets = append(sets, "assigned_to = NULL")
	case upd.AssignedTo != nil:
		add("assigned_to", *upd.AssignedTo)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE contacts SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

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
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
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

func (r *PostgresRepository) Stats(ctx context.Context, recent, months int) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{
		ByStatus:   map[models.ContactStatus]int{},
		ByPriority: map[models.Priority]int{},
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&stats.Total); err != nil {
		return nil, dbx.WrapError(err)
	}

	if err := r.groupCount(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`, func(k string, n int) {
		stats.ByStatus[models.ContactStatus(k)] = n
	}); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, `SELECT priority, COUNT(*) FROM contacts GROUP BY priority`, func(k string, n int) {
		stats.ByPriority[models.Priority(k)] = n
	}); err != nil {
		return nil, err
	}

	recentContacts, _, err := r.List(ctx, models.ContactFilter{Page: 1, Limit: recent, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return nil, err
	}
	stats.Recent = recentContacts

	monthly :=
		`SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month, COUNT(*)
		 FROM contacts
		 WHERE created_at >= date_trunc('month', now()) - make_interval(months => $1)
		 GROUP BY month
		 ORDER BY month`

	rows, err := r.db.QueryContext(ctx, monthly, months-1)
	if err != nil {
		return nil, dbx.WrapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.MonthlyCount
		if err := rows.Scan(&m.Month, &m.Count); err != nil {
			return nil, dbx.WrapError(err)
		}
		stats.Monthly = append(stats.Monthly, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.WrapError(err)
	}

	return stats, nil
}

func (r *PostgresRepository) groupCount(ctx context.Context, query string, fn func(key string, n int)) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return dbx.WrapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return dbx.WrapError(err)
		}
		fn(k, n)
	}
	return dbx.WrapError(rows.Err())
}
