package embed

import (
	"context"
	"sync"
	"time"
)

// Gemini free-tier quota: 60 requests per minute.
const (
	DefaultRequestsPerWindow = 60
	DefaultWindow            = 60 * time.Second
	DefaultMinDelay          = 1000 * time.Millisecond
)

// rateLimiter throttles upstream calls with two rules: a fixed minimum
// delay between consecutive calls, and a sliding-window cap on calls per
// window. The mutex is held across the waits so concurrent callers
// serialize through the same delay chain instead of bursting together.
type rateLimiter struct {
	mu          sync.Mutex
	requests    []time.Time
	maxRequests int
	window      time.Duration
	minDelay    time.Duration
	lastRequest time.Time
}

func newRateLimiter(maxRequests int, window, minDelay time.Duration) *rateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultRequestsPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if minDelay < 0 {
		minDelay = 0
	}
	return &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		minDelay:    minDelay,
	}
}

// Acquire blocks until a call slot is available, then records the call.
// It returns early with the context error on cancellation.
func (r *rateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Minimum spacing between calls, applied before every attempt.
	if !r.lastRequest.IsZero() {
		if elapsed := time.Since(r.lastRequest); elapsed < r.minDelay {
			if err := sleepContext(ctx, r.minDelay-elapsed); err != nil {
				return err
			}
		}
	}

	r.prune(time.Now())

	// Window saturated: wait until the oldest recorded call expires.
	if len(r.requests) >= r.maxRequests {
		oldest := r.requests[0]
		if wait := r.window - time.Since(oldest); wait > 0 {
			if err := sleepContext(ctx, wait); err != nil {
				return err
			}
		}
		r.prune(time.Now())
	}

	now := time.Now()
	r.requests = append(r.requests, now)
	r.lastRequest = now
	return nil
}

// prune drops recorded calls that have aged out of the window.
func (r *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.requests[:0]
	for _, t := range r.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.requests = kept
}

// sleepContext sleeps for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
