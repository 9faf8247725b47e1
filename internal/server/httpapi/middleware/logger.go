package middleware

import (
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/gin-gonic/gin"
)

// Logger writes one line per request. 5xx responses are logged as errors
// together with whatever the handlers attached through c.Error.
func Logger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if id, ok := GetIdentity(c); ok {
			args = append(args, "user_id", id.ID)
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			if len(c.Errors) > 0 {
				args = append(args, "error", c.Errors.String())
			}
			logger.Error(ctx, "request failed", args...)
		case status >= 400:
			logger.Warn(ctx, "request rejected", args...)
		default:
			logger.Info(ctx, "request", args...)
		}
	}
}
