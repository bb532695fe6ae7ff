package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"
)

// RateLimitError reports how long a caller must wait before the next call is
// admitted.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %.0f seconds", math.Ceil(e.Wait.Seconds()))
}

// WaitSeconds is the wait rounded up to whole seconds for client responses.
func (e *RateLimitError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}

// Limiter is a sliding-window rate limiter keyed by caller identity. A call
// is admitted when fewer than maxCalls happened within the window ending now.
type Limiter struct {
	mu       sync.Mutex
	calls    map[string][]time.Time
	maxCalls int
	window   time.Duration
	now      func() time.Time
}

// NewLimiter creates a limiter allowing maxCalls per window per key.
func NewLimiter(maxCalls int, window time.Duration) *Limiter {
	l := &Limiter{
		calls:    make(map[string][]time.Time),
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
	}
	// Periodically evict stale entries to prevent memory growth.
	go l.cleanup()
	return l
}

// Check admits the call or returns a *RateLimitError telling the caller how
// long to wait.
func (l *Limiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.calls[key][:0]
	for _, t := range l.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.maxCalls {
		// The oldest call in the window decides when capacity frees up.
		wait := recent[0].Add(l.window).Sub(now)
		l.calls[key] = recent
		return &RateLimitError{Wait: wait}
	}

	l.calls[key] = append(recent, now)
	return nil
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.window)
		for key, times := range l.calls {
			if len(times) == 0 || !times[len(times)-1].After(cutoff) {
				delete(l.calls, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit returns an HTTP middleware that rejects requests exceeding the
// limit with 429 Too Many Requests and a retry hint.
func RateLimit(maxCalls int, window time.Duration) func(http.Handler) http.Handler {
	limiter := NewLimiter(maxCalls, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Prefer X-Real-Ip set by chi's RealIP middleware.
			if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				ip = xri
			}
			if err := limiter.Check(ip); err != nil {
				var rlErr *RateLimitError
				w.Header().Set("Content-Type", "application/json")
				if errors.As(err, &rlErr) {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", rlErr.WaitSeconds()))
					w.WriteHeader(http.StatusTooManyRequests)
					_ = json.NewEncoder(w).Encode(map[string]any{
						"error":       "rate limit exceeded",
						"retry_after": rlErr.WaitSeconds(),
					})
					return
				}
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
