package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit counts requests per client IP within scope. When the limiter
// itself fails the request is let through and a warning is logged.
func RateLimit(l ratelimit.Limiter, scope string, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":" + c.ClientIP()

		d, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, allowing request",
				"scope", scope, "error", err)
			c.Next()
			return
		}

		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			response.Fail(c, http.StatusTooManyRequests, response.MsgTooManyRequests, nil)
			return
		}
		c.Next()
	}
}
