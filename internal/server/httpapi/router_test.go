package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contactID = "0f8fad5b-d9cb-469f-a165-70867728950e"

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router   *gin.Engine
	auth     *fakeAuth
	users    *fakeUsers
	contacts *fakeContacts
	messages *fakeMessages
	exports  *fakeExports
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		auth: &fakeAuth{
			users:       map[string]string{"alice": "correct-horse"},
			validTokens: map[string]bool{"good-token": true},
		},
		users:    &fakeUsers{},
		contacts: &fakeContacts{},
		messages: &fakeMessages{},
		exports:  &fakeExports{},
	}
	r, err := NewRouter(Dependencies{
		Auth:           e.auth,
		Users:          e.users,
		Contacts:       e.contacts,
		Messages:       e.messages,
		Exports:        e.exports,
		DB:             fakePinger{},
		FormLimiter:    ratelimit.NewMemoryLimiter(100, time.Minute),
		AuthLimiter:    ratelimit.NewMemoryLimiter(100, time.Minute),
		AllowedOrigins: []string{"http://localhost:3001"},
		RequestTimeout: 5 * time.Second,
		Logger:         logging.Nop{},
	})
	require.NoError(t, err)
	e.router = r
	return e
}

func bearer(t *testing.T, id string, role models.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken(models.Identity{ID: id, Username: "user-" + string(role), Role: role}, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (e *env) do(method, path, body, authz string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_Success(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "agent", user["role"])
	assert.NotContains(t, w.Body.String(), "secret")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)

	unknown := e.do(http.MethodPost, "/api/auth/login", `{"username":"mallory","password":"whatever"}`, "")
	wrong := e.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`, "")
	byIdentifier := e.do(http.MethodPost, "/api/auth/login", `{"identifier":"alice","password":"wrong"}`, "")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, unknown.Body.String(), byIdentifier.Body.String())
	assert.JSONEq(t, `{"success":false,"message":"invalid credentials"}`, unknown.Body.String())
}

func TestLogin_MissingFieldsAndInternalError(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/auth/login", `{"username":"alice"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.auth.loginInternal = true
	w = e.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"internal server error"}`, w.Body.String())
}

func TestForgotPassword_SameReplyForAnyIdentifier(t *testing.T) {
	e := newEnv(t)

	known := e.do(http.MethodPost, "/api/auth/forgot-password", `{"identifier":"alice"}`, "")
	unknown := e.do(http.MethodPost, "/api/auth/forgot-password", `{"identifier":"nobody@example.com"}`, "")

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Equal(t, true, decode(t, known)["success"])
	assert.Equal(t, []string{"alice", "nobody@example.com"}, e.auth.forgotCalls)

	e.auth.forgotErr = fmt.Errorf("%w: db down", common.ErrorInternal)
	w := e.do(http.MethodPost, "/api/auth/forgot-password", `{"identifier":"alice"}`, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"ok", nil, http.StatusOK, "Password has been reset successfully"},
		{"short", fmt.Errorf("%w: must be at least 12 characters", common.ErrPasswordTooShort), http.StatusBadRequest, "password too short: must be at least 12 characters"},
		{"long", fmt.Errorf("%w: must be at most 72 bytes", common.ErrPasswordTooLong), http.StatusBadRequest, "password too long: must be at most 72 bytes"},
		{"bad token", common.ErrInvalidResetToken, http.StatusBadRequest, "invalid or expired token"},
		{"inactive", common.ErrAccountInactive, http.StatusBadRequest, "user not found or inactive"},
		{"storage", fmt.Errorf("%w: tx", common.ErrorInternal), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.auth.resetErr = tt.err

			w := e.do(http.MethodPost, "/api/auth/reset-password", `{"token":"abc","newPassword":"newpassword1"}`, "")
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.err == nil, body["success"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestValidateResetToken(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/auth/validate-reset-token", `{"token":"good-token"}`, "")
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/validate-reset-token", `{"token":"spent"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false,"message":"invalid or expired token"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/auth/validate-reset-token", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	e := newEnv(t)
	r, err := NewRouter(Dependencies{
		Auth:        e.auth,
		Users:       e.users,
		Contacts:    e.contacts,
		Messages:    e.messages,
		Exports:     e.exports,
		FormLimiter: ratelimit.NewMemoryLimiter(100, time.Minute),
		AuthLimiter: ratelimit.NewMemoryLimiter(2, time.Minute),
		Logger:      logging.Nop{},
	})
	require.NoError(t, err)
	e.router = r

	for i := 0; i < 2; i++ {
		w := e.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := e.do(http.MethodPost, "/api/auth/login", `{"username":"alice","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAuthRateLimit_ForwardedFor(t *testing.T) {
	login := func(e *env, xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w.Code
	}
	newLimited := func(t *testing.T, proxies []string) *env {
		e := newEnv(t)
		r, err := NewRouter(Dependencies{
			Auth:           e.auth,
			Users:          e.users,
			Contacts:       e.contacts,
			Messages:       e.messages,
			Exports:        e.exports,
			FormLimiter:    ratelimit.NewMemoryLimiter(100, time.Minute),
			AuthLimiter:    ratelimit.NewMemoryLimiter(2, time.Minute),
			TrustedProxies: proxies,
			Logger:         logging.Nop{},
		})
		require.NoError(t, err)
		e.router = r
		return e
	}

	t.Run("untrusted peer cannot rotate buckets", func(t *testing.T) {
		e := newLimited(t, nil)
		var codes []int
		for i := 0; i < 6; i++ {
			codes = append(codes, login(e, fmt.Sprintf("203.0.113.%d", i+1)))
		}
		assert.Equal(t, []int{401, 401, 429, 429, 429, 429}, codes)
	})

	t.Run("trusted proxy forwards client address", func(t *testing.T) {
		// httptest requests come from 192.0.2.1.
		e := newLimited(t, []string{"192.0.2.1"})
		for i := 0; i < 4; i++ {
			assert.Equal(t, http.StatusUnauthorized, login(e, fmt.Sprintf("203.0.113.%d", i+1)))
		}
	})
}

func TestNewRouter_RejectsBadProxy(t *testing.T) {
	e := newEnv(t)
	_, err := NewRouter(Dependencies{
		Auth:           e.auth,
		TrustedProxies: []string{"not-an-ip"},
		Logger:         logging.Nop{},
	})
	assert.Error(t, err)
}

func TestRoleGates(t *testing.T) {
	e := newEnv(t)
	admin := bearer(t, "a0000000-0000-4000-8000-000000000001", models.RoleAdmin)
	manager := bearer(t, "a0000000-0000-4000-8000-000000000002", models.RoleManager)
	agent := bearer(t, "a0000000-0000-4000-8000-000000000003", models.RoleAgent)
	userPath := "/api/auth/users/a0000000-0000-4000-8000-000000000009"
	userBody := `{"username":"newbie","email":"newbie@example.com","password":"longenough"}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		authz  string
		status int
	}{
		{"no token", http.MethodGet, "/api/contacts", "", "", http.StatusUnauthorized},
		{"agent lists contacts", http.MethodGet, "/api/contacts", "", agent, http.StatusOK},
		{"agent cannot delete contact", http.MethodDelete, "/api/contacts/" + contactID, "", agent, http.StatusForbidden},
		{"manager deletes contact", http.MethodDelete, "/api/contacts/" + contactID, "", manager, http.StatusOK},
		{"agent cannot assign", http.MethodPut, "/api/contacts/" + contactID + "/assign", `{"assigned_to":null}`, agent, http.StatusForbidden},
		{"agent cannot export", http.MethodPost, "/api/contacts/export", "", agent, http.StatusForbidden},
		{"agent cannot list users", http.MethodGet, "/api/auth/users", "", agent, http.StatusForbidden},
		{"manager lists users", http.MethodGet, "/api/auth/users", "", manager, http.StatusOK},
		{"manager cannot create user", http.MethodPost, "/api/auth/users", userBody, manager, http.StatusForbidden},
		{"admin creates user", http.MethodPost, "/api/auth/users", userBody, admin, http.StatusCreated},
		{"manager cannot delete user", http.MethodDelete, userPath, "", manager, http.StatusForbidden},
		{"admin deletes user", http.MethodDelete, userPath, "", admin, http.StatusOK},
		{"agent cannot edit others", http.MethodPut, userPath, `{"username":"other"}`, agent, http.StatusForbidden},
		{"agent reads messages", http.MethodGet, "/api/messages/contact/" + contactID, "", agent, http.StatusOK},
		{"me", http.MethodGet, "/api/auth/me", "", agent, http.StatusOK},
		{"logout", http.MethodPost, "/api/auth/logout", "", agent, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(tt.method, tt.path, tt.body, tt.authz)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestGateMessages(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/contacts", "", "")
	assert.Contains(t, w.Body.String(), "authentication required")

	w = e.do(http.MethodGet, "/api/contacts", "", "Bearer junk")
	assert.Contains(t, w.Body.String(), "invalid token")

	expired, err := auth.GenerateToken(models.Identity{ID: "x", Role: models.RoleAdmin}, testSecret, -time.Minute)
	require.NoError(t, err)
	w = e.do(http.MethodGet, "/api/contacts", "", "Bearer "+expired)
	assert.Contains(t, w.Body.String(), "token expired")

	w = e.do(http.MethodDelete, "/api/contacts/"+contactID, "", bearer(t, "x", models.RoleAgent))
	assert.Contains(t, w.Body.String(), "insufficient permissions")
}

func TestCreateContact(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/contacts",
		`{"fullName":"Jane Doe","email":"jane@example.com","phone":"5551234567","message":"I would like a quote please","recaptcha":"tok"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, e.contacts.created)
	assert.Equal(t, "tok", e.contacts.created.CaptchaToken)
	assert.NotEmpty(t, e.contacts.created.RemoteIP)
	assert.Equal(t, true, decode(t, w)["success"])
}

func TestCreateContact_Validation(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/contacts",
		`{"fullName":"Jo","email":"not-an-email","phone":"555-1234","message":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, e.contacts.created)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	fields := map[string]bool{}
	for _, d := range body["details"].([]any) {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"fullName": true, "email": true, "phone": true, "message": true}, fields)
}

func TestCreateContact_CaptchaRejected(t *testing.T) {
	e := newEnv(t)
	e.contacts.createErr = fmt.Errorf("%w: score too low", common.ErrCaptchaFailed)

	w := e.do(http.MethodPost, "/api/contacts",
		`{"fullName":"Jane Doe","email":"jane@example.com","phone":"5551234567","message":"I would like a quote please"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "reCAPTCHA verification failed")
}

func TestContacts_StaticRoutesBeforeID(t *testing.T) {
	e := newEnv(t)
	agentID := "a0000000-0000-4000-8000-000000000003"
	agent := bearer(t, agentID, models.RoleAgent)

	w := e.do(http.MethodGet, "/api/contacts/my?status=attended&page=2", "", agent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, agentID, e.contacts.mineFor)
	assert.Equal(t, models.StatusAttended, e.contacts.lastFilter.Status)
	assert.Equal(t, 2, e.contacts.lastFilter.Page)

	w = e.do(http.MethodGet, "/api/contacts/stats", "", agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":3`)

	w = e.do(http.MethodGet, "/api/contacts/not-a-uuid", "", agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContacts_ListFilterValidation(t *testing.T) {
	e := newEnv(t)
	agent := bearer(t, "x", models.RoleAgent)

	w := e.do(http.MethodGet, "/api/contacts?status=closed", "", agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"status"`)

	w = e.do(http.MethodGet, "/api/contacts?page=-1", "", agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/contacts?search=+acme+&sort_by=created_at&sort_order=asc", "", agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", e.contacts.lastFilter.Search)
	assert.Equal(t, "asc", e.contacts.lastFilter.SortOrder)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestContacts_UpdateAssignee(t *testing.T) {
	e := newEnv(t)
	agent := bearer(t, "x", models.RoleAgent)
	path := "/api/contacts/" + contactID

	w := e.do(http.MethodPut, path, `{"status":"on_hold","assigned_to":null}`, agent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, e.contacts.updated.ClearAssignee)
	assert.Equal(t, models.StatusOnHold, *e.contacts.updated.Status)

	w = e.do(http.MethodPut, path, `{"notes":"called back"}`, agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.contacts.updated.ClearAssignee)
	assert.Nil(t, e.contacts.updated.AssignedTo)

	w = e.do(http.MethodPut, path, `{"assigned_to":"bob"}`, agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContacts_Assign(t *testing.T) {
	e := newEnv(t)
	manager := bearer(t, "x", models.RoleManager)
	path := "/api/contacts/" + contactID + "/assign"
	assignee := "a0000000-0000-4000-8000-000000000003"

	w := e.do(http.MethodPut, path, `{"assigned_to":"`+assignee+`"}`, manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assignee, *e.contacts.assignedTo)

	w = e.do(http.MethodPut, path, `{"assigned_to":null}`, manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", *e.contacts.assignedTo)
	assert.Contains(t, w.Body.String(), "unassigned")

	w = e.do(http.MethodPut, path, `{}`, manager)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContacts_FollowUpAndTemplate(t *testing.T) {
	e := newEnv(t)
	agent := bearer(t, "x", models.RoleAgent)

	w := e.do(http.MethodPost, "/api/contacts/"+contactID+"/follow-up", `{"customMessage":"Thanks for reaching out"}`, agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Thanks for reaching out", e.contacts.followUp)

	e.contacts.followErr = common.ErrNotificationUnavailable
	w = e.do(http.MethodPost, "/api/contacts/"+contactID+"/follow-up", `{"customMessage":"Again"}`, agent)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = e.do(http.MethodPost, "/api/contacts/"+contactID+"/email-template", `{"emailType":"quote"}`, agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, notify.TemplateKind("quote"), e.contacts.template)

	w = e.do(http.MethodPost, "/api/contacts/"+contactID+"/email-template", `{"emailType":"spam"}`, agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContacts_Export(t *testing.T) {
	e := newEnv(t)
	manager := bearer(t, "x", models.RoleManager)

	w := e.do(http.MethodPost, "/api/contacts/export?status=sent", "", manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://s3.example.com/x")

	e.exports.err = common.ErrStorageNotConfigured
	w = e.do(http.MethodPost, "/api/contacts/export", "", manager)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMessages(t *testing.T) {
	e := newEnv(t)
	agentID := "a0000000-0000-4000-8000-000000000003"
	agent := bearer(t, agentID, models.RoleAgent)

	w := e.do(http.MethodPost, "/api/messages/contact/"+contactID, `{"message":"Left a voicemail"}`, agent)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Left a voicemail", e.messages.created)
	assert.Equal(t, models.MessageType(""), e.messages.typ)

	w = e.do(http.MethodPost, "/api/messages/contact/"+contactID, `{"message":""}`, agent)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/messages/contact/"+contactID+"/mark-read", "", agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, agentID, e.messages.markedBy)
	assert.Contains(t, w.Body.String(), `"updated":4`)

	w = e.do(http.MethodGet, "/api/messages/unread-count", "", agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":7`)

	w = e.do(http.MethodGet, "/api/messages/contact/"+contactID, "", agent)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_pages":1`)
}

func TestUsers_DeleteSelfIsValidationError(t *testing.T) {
	e := newEnv(t)
	e.users.deleteErr = errors.Join(common.ErrorValidation, errors.New("cannot delete your own account"))

	w := e.do(http.MethodDelete, "/api/auth/users/a0000000-0000-4000-8000-000000000001", "",
		bearer(t, "a0000000-0000-4000-8000-000000000001", models.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/contacts", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3001", w.Header().Get("Access-Control-Allow-Origin"))
}
