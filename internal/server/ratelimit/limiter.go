// Package ratelimit implements fixed-window request counters keyed by an
// arbitrary string, usually a scope plus the client IP.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the window resets. Only set when the
	// request was refused.
	RetryAfter time.Duration
}

// Limiter counts a hit for key and reports whether it is still within the
// window's budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
