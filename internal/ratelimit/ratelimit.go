// Package ratelimit provides the process-local token-bucket rate limiting
// from spec.md §4.4: one bucket per HTTP API provider, capacity equal to
// the provider's configured rate_limit_rps, refilled continuously.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcom-dev/elevresolve/internal/model"
)

// Limiters owns one golang.org/x/time/rate.Limiter per provider id, created
// lazily so callers never need a separate registration pass.
type Limiters struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	capacity map[string]float64
}

func NewLimiters() *Limiters {
	return &Limiters{
		buckets:  make(map[string]*rate.Limiter),
		capacity: make(map[string]float64),
	}
}

func (l *Limiters) bucketFor(providerID string, rps float64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[providerID]
	if !ok || l.capacity[providerID] != rps {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		b = rate.NewLimiter(rate.Limit(rps), burst)
		l.buckets[providerID] = b
		l.capacity[providerID] = rps
	}
	return b
}

// Acquire attempts to take one token for providerID before deadline. It
// returns a *model.Error with KindRateLimited, never blocking past
// deadline, per §4.4: "Requests that cannot acquire a token within
// deadline - now return RateLimited without issuing the HTTP call."
func (l *Limiters) Acquire(ctx context.Context, providerID string, rps float64, deadline time.Time) error {
	b := l.bucketFor(providerID, rps)

	waitCtx := ctx
	var cancel context.CancelFunc
	if !deadline.IsZero() {
		waitCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	if err := b.Wait(waitCtx); err != nil {
		return model.NewError(model.KindRateLimited, "rate limit token not available before deadline", err)
	}
	return nil
}
