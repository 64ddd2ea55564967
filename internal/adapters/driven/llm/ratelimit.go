// Package llm holds helpers shared by the generation backend adapters.
package llm

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultBackoff is used when a 429 response carries no usable Retry-After.
const defaultBackoff = 30 * time.Second

// RateLimiter paces requests to a generation backend.
// It uses a token bucket plus a backoff window set by 429 responses.
// A nil *RateLimiter never blocks.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls with a
// burst of one. Returns nil when requestsPerMinute is not positive.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		now:     time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := retryAt.Sub(r.now()); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimit starts a backoff window after a 429 response.
// The Retry-After header is honoured when it holds a number of seconds.
func (r *RateLimiter) RecordRateLimit(header http.Header) {
	if r == nil {
		return
	}

	backoff := defaultBackoff
	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
		backoff = time.Duration(secs) * time.Second
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = r.now().Add(backoff)
}
