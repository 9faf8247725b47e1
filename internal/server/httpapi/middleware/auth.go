package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to the caller it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (*models.Identity, error)
}

type TokenVerifierFunc func(token string) (*models.Identity, error)

func (f TokenVerifierFunc) VerifyToken(token string) (*models.Identity, error) {
	return f(token)
}

// Authenticate requires a valid "Bearer <token>" Authorization header.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Fail(c, http.StatusUnauthorized, response.MsgAuthRequired, nil)
			return
		}

		id, err := v.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			msg := response.MsgInvalidToken
			if errors.Is(err, common.ErrTokenExpired) {
				msg = response.MsgTokenExpired
			}
			response.Fail(c, http.StatusUnauthorized, msg, nil)
			return
		}

		SetIdentity(c, *id)
		c.Next()
	}
}

// RequireRoles admits only callers whose role is in roles. It must run
// after Authenticate.
func RequireRoles(roles auth.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, response.MsgAuthRequired, nil)
			return
		}
		if !roles.Allows(id.Role) {
			response.Fail(c, http.StatusForbidden, response.MsgForbidden, nil)
			return
		}
		c.Next()
	}
}
