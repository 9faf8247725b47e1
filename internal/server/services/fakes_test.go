package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/messages"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "test-secret",
		AccessTokenValidityDuration: time.Hour,
		ResetTokenValidityDuration:  time.Hour,
		BcryptCost:                  10,
		PasswordMinLength:           8,
		FrontendURL:                 "http://front.test",
		DefaultPageSize:             10,
		MaxPageSize:                 100,
	}
}

// --- users ---

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	seq    int
	getErr error
	// pwErr fails UpdatePassword regardless of state.
	pwErr error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*models.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Username == u.Username || x.Email == u.Email {
			return nil, fmt.Errorf("%w: users_username_key", common.ErrorAlreadyExists)
		}
	}
	f.seq++
	c := *u
	c.ID = fmt.Sprintf("u%d", f.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) GetActiveByLogin(_ context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.IsActive && (u.Username == login || strings.EqualFold(u.Email, login)) {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetActiveByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.GetActiveByLogin(ctx, email)
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.User
	for i := 1; i <= f.seq; i++ {
		if u, ok := f.byID[fmt.Sprintf("u%d", i)]; ok {
			all = append(all, *u)
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeUsers) Update(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pwErr != nil {
		return f.pwErr
	}
	u, ok := f.byID[id]
	if !ok || !u.IsActive {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// --- reset tokens ---

type fakeResetTokens struct {
	mu        sync.Mutex
	rows      []*models.PasswordResetToken
	createErr error
}

func (f *fakeResetTokens) Create(_ context.Context, userID, hash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows = append(f.rows, &models.PasswordResetToken{
		ID: fmt.Sprintf("t%d", len(f.rows)+1), UserID: userID, TokenHash: hash, ExpiresAt: expiresAt,
	})
	return nil
}

func (f *fakeResetTokens) InvalidateForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && !r.Used {
			r.Used = true
			r.UsedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *fakeResetTokens) FindValid(_ context.Context, hash string, now time.Time) (*models.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == hash && r.IsValid(now) {
			out := *r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResetTokens) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.TokenHash == hash && r.IsValid(now) {
			r.Used = true
			r.UsedAt = &now
			return r.UserID, nil
		}
	}
	return "", common.ErrorNotFound
}

// --- contacts ---

type fakeContacts struct {
	mu       sync.Mutex
	byID     map[string]*models.Contact
	seq      int
	lastList models.ContactFilter
	listErr  error
}

func newFakeContacts() *fakeContacts { return &fakeContacts{byID: map[string]*models.Contact{}} }

func (f *fakeContacts) Create(_ context.Context, c *models.Contact) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *c
	cp.ID = fmt.Sprintf("c%d", f.seq)
	cp.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cp.UpdatedAt = cp.CreatedAt
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeContacts) GetByID(_ context.Context, id string) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (f *fakeContacts) List(_ context.Context, flt models.ContactFilter) ([]models.Contact, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = flt
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var all []models.Contact
	for i := 1; i <= f.seq; i++ {
		c, ok := f.byID[fmt.Sprintf("c%d", i)]
		if !ok {
			continue
		}
		if flt.AssignedTo != "" && (c.AssignedTo == nil || *c.AssignedTo != flt.AssignedTo) {
			continue
		}
		if flt.Status != "" && c.Status != flt.Status {
			continue
		}
		all = append(all, *c)
	}
	total := len(all)
	start := flt.Offset()
	if start > total {
		start = total
	}
	end := start + flt.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (f *fakeContacts) Update(_ context.Context, id string, upd models.ContactUpdate) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	if upd.Priority != nil {
		c.Priority = *upd.Priority
	}
	if upd.Notes != nil {
		c.Notes = upd.Notes
	}
	if upd.AssignedTo != nil {
		v := *upd.AssignedTo
		c.AssignedTo = &v
	}
	if upd.ClearAssignee {
		c.AssignedTo = nil
	}
	out := *c
	return &out, nil
}

func (f *fakeContacts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeContacts) Stats(_ context.Context, recent, months int) (*models.DashboardStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &models.DashboardStats{
		Total:      len(f.byID),
		ByStatus:   map[models.ContactStatus]int{},
		ByPriority: map[models.Priority]int{},
	}
	for _, c := range f.byID {
		st.ByStatus[c.Status]++
		st.ByPriority[c.Priority]++
	}
	st.Monthly = make([]models.MonthlyCount, months)
	_ = recent
	return st, nil
}

// --- messages ---

type fakeMessages struct {
	mu      sync.Mutex
	rows    []*models.ContactMessage
	readErr error
}

func (f *fakeMessages) Create(_ context.Context, m *models.ContactMessage) (*models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	cp.ID = fmt.Sprintf("m%d", len(f.rows)+1)
	f.rows = append(f.rows, &cp)
	out := cp
	return &out, nil
}

func (f *fakeMessages) GetByID(_ context.Context, id string) (*models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id {
			out := *m
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMessages) ListByContact(_ context.Context, contactID string, limit, offset int) ([]models.ContactMessage, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.ContactMessage
	for _, m := range f.rows {
		if m.ContactID == contactID {
			all = append(all, *m)
		}
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeMessages) Update(_ context.Context, id string, upd models.MessageUpdate) (*models.ContactMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID != id {
			continue
		}
		if upd.Message != nil {
			m.Message = *upd.Message
		}
		if upd.MessageType != nil {
			m.MessageType = *upd.MessageType
		}
		if upd.IsRead != nil {
			m.IsRead = *upd.IsRead
		}
		out := *m
		return &out, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeMessages) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.rows {
		if m.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeMessages) MarkRead(_ context.Context, contactID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	var n int64
	for _, m := range f.rows {
		if m.ContactID == contactID && !m.IsRead && (m.UserID == nil || *m.UserID != userID) {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) UnreadCount(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.rows {
		if !m.IsRead && (m.UserID == nil || *m.UserID != userID) {
			n++
		}
	}
	return n, nil
}

// --- manager ---

type fakeRepoManager struct {
	users    *fakeUsers
	tokens   *fakeResetTokens
	contacts *fakeContacts
	messages *fakeMessages
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    newFakeUsers(),
		tokens:   &fakeResetTokens{},
		contacts: newFakeContacts(),
		messages: &fakeMessages{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository  { return m.tokens }
func (m *fakeRepoManager) Contacts(dbx.DBTX) contacts.Repository        { return m.contacts }
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository        { return m.messages }

// --- notifier ---

type resetNote struct {
	userID string
	token  string
}

type fakeNotifier struct {
	mu       sync.Mutex
	resets   []resetNote
	created  []string
	statuses []string
	assigned []string
	followUp []string
	posted   []notify.TemplateKind
	sendErr  error
}

func (n *fakeNotifier) PasswordReset(_ context.Context, u *models.User, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, resetNote{userID: u.ID, token: token})
}

func (n *fakeNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		return ""
	}
	return n.resets[len(n.resets)-1].token
}

func (n *fakeNotifier) NewContact(_ context.Context, c *models.Contact) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, c.ID)
}

func (n *fakeNotifier) StatusChanged(_ context.Context, c *models.Contact, from, to models.ContactStatus, by string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, fmt.Sprintf("%s:%s->%s by %s", c.ID, from, to, by))
}

func (n *fakeNotifier) Assigned(_ context.Context, c *models.Contact, assignee, by string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, fmt.Sprintf("%s:%s by %s", c.ID, assignee, by))
}

func (n *fakeNotifier) SendFollowUp(_ context.Context, c *models.Contact, _, text, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.followUp = append(n.followUp, c.Email+":"+text)
	return nil
}

func (n *fakeNotifier) PostEmailTemplate(_ context.Context, _ *models.Contact, kind notify.TemplateKind, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.posted = append(n.posted, kind)
	return nil
}

type fakeCaptcha struct {
	err      error
	gotToken string
	gotIP    string
}

func (c *fakeCaptcha) Verify(_ context.Context, token, ip string) error {
	c.gotToken, c.gotIP = token, ip
	return c.err
}
