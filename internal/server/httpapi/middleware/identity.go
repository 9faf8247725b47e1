// Package middleware holds the gin middleware chain of the dashboard API.
package middleware

import (
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

const identityKey = "contactkeeper.identity"

// SetIdentity attaches the authenticated caller to c.
func SetIdentity(c *gin.Context, id models.Identity) {
	c.Set(identityKey, id)
}

// GetIdentity returns the caller attached by Authenticate.
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}
