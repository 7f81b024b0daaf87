package ratelimiter

import (
	"sync"
	"time"
)

// window tracks request count and reset time for one key
type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter implements fixed-window rate limiting. The portal applies it
// to write endpoints so a single client cannot flood the program with
// transactions.
type RateLimiter struct {
	windows map[string]*window
	mutex   sync.Mutex
	limit   int
	size    time.Duration
	now     func() time.Time
}

// New creates a RateLimiter allowing limit requests per window
func New(limit int, size time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window.
// remaining and resetAt describe the window after this request.
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetAt time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rl.size)}
		rl.windows[key] = w
	}

	if w.count >= rl.limit {
		return false, 0, w.resetAt
	}

	w.count++
	return true, rl.limit - w.count, w.resetAt
}

// Limit returns the configured requests per window
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Cleanup removes expired windows
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// Size returns the number of tracked keys
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.windows)
}
