package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type window struct {
	count int
	reset time.Time
}

// MemoryLimiter keeps counters in process. Used when no Redis is configured.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*window
	hits  int
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    max,
		window: win,
		now:    time.Now,
		items:  make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.hits++
	if l.hits%sweepEvery == 0 {
		l.sweep(now)
	}

	w, ok := l.items[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(l.window)}
		l.items[key] = w
	}
	w.count++

	if w.count <= l.max {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: w.reset.Sub(now)}, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.items {
		if !now.Before(w.reset) {
			delete(l.items, k)
		}
	}
}
