package gateway

import (
	"sync"
	"time"
)

// RateLimiter enforces a minimum spacing between outbound calls. It is an
// explicit object injected into the client rather than ambient state, so
// tests can construct one with a short interval.
type RateLimiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

// NewRateLimiter creates a limiter with the given minimum inter-call spacing.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Wait blocks until at least the configured interval has elapsed since the
// previous call, then stamps the current time.
func (r *RateLimiter) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.last.IsZero() {
		elapsed := time.Since(r.last)
		if elapsed < r.interval {
			time.Sleep(r.interval - elapsed)
		}
	}
	r.last = time.Now()
}
