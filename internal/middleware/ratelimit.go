package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	count   int
	resetAt time.Time
}

// Limit allows Requests per Window for one key.
type Limit struct {
	Requests int
	Window   time.Duration
}

// RateLimiter is a fixed-window counter per key, held in memory.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow counts one attempt for key. When the limit is exceeded it reports
// false and how long until the window resets.
func (rl *RateLimiter) Allow(key string, l Limit) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.entries[key]
	if !ok || !now.Before(e.resetAt) {
		rl.entries[key] = &entry{count: 1, resetAt: now.Add(l.Window)}
		return true, 0
	}
	e.count++
	if e.count > l.Requests {
		return false, e.resetAt.Sub(now)
	}
	return true, 0
}

// Cleanup drops entries whose window has passed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, e := range rl.entries {
		if !now.Before(e.resetAt) {
			delete(rl.entries, key)
			n++
		}
	}
	return n
}

// RateLimit rejects requests over l with 429 and a Retry-After header.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string, l Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(keyFunc(r), l)
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeJSONError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
