package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter implements per-caller sliding window rate limiting. Callers are
// keyed by gateway user ID when present, else by client IP.
// State is in-memory; each instance enforces independently.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	proxyHeader string
	mu          sync.Mutex
	users       map[string]*userWindow
	stop        chan struct{}
	stopOnce    sync.Once
}

type userWindow struct {
	timestamps []time.Time
	lastAccess time.Time
}

// NewRateLimiter creates a rate limiter with the given requests-per-second
// limit. proxyHeader is passed to ClientIP for anonymous callers.
func NewRateLimiter(maxPerSecond int, proxyHeader string) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxPerSecond,
		window:      time.Second,
		proxyHeader: proxyHeader,
		users:       make(map[string]*userWindow),
		stop:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow checks if a request from the given caller is allowed.
func (rl *RateLimiter) Allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	uw, ok := rl.users[userID]
	if !ok {
		uw = &userWindow{}
		rl.users[userID] = uw
	}

	// Remove timestamps outside the window
	cutoff := now.Add(-rl.window)
	start := 0
	for start < len(uw.timestamps) && uw.timestamps[start].Before(cutoff) {
		start++
	}
	uw.timestamps = uw.timestamps[start:]
	uw.lastAccess = now

	if len(uw.timestamps) >= rl.maxRequests {
		return false
	}

	uw.timestamps = append(uw.timestamps, now)
	return true
}

// cleanup removes stale user entries every 60 seconds.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		cutoff := time.Now().Add(-5 * time.Minute)
		for userID, uw := range rl.users {
			if uw.lastAccess.Before(cutoff) {
				delete(rl.users, userID)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware returns an HTTP middleware that applies rate limiting.
// Place it after Authorize so authenticated callers are keyed by user ID.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r, rl.proxyHeader)
		if authCtx := GetAuthContext(r.Context()); authCtx != nil {
			key = "user:" + authCtx.UserID
		}

		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "1")
			WriteJSONError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please slow down.")
			return
		}

		next.ServeHTTP(w, r)
	})
}
