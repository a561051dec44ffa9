package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jcom-dev/elevresolve/internal/model"
)

func TestAcquire_AllowsWithinCapacity(t *testing.T) {
	l := NewLimiters()
	err := l.Acquire(context.Background(), "elvis", 10, time.Now().Add(time.Second))
	require.NoError(t, err)
}

func TestAcquire_RateLimitedPastDeadline(t *testing.T) {
	l := NewLimiters()
	// Burst capacity 1 at 1 rps: the second immediate acquire must wait ~1s,
	// which a near-now deadline cannot satisfy.
	require.NoError(t, l.Acquire(context.Background(), "slow", 1, time.Now().Add(time.Second)))

	err := l.Acquire(context.Background(), "slow", 1, time.Now().Add(5*time.Millisecond))
	require.Error(t, err)
	require.Equal(t, model.KindRateLimited, model.Kind(err))
}

func TestAcquire_SharesBucketAcrossCallsForSameProvider(t *testing.T) {
	l := NewLimiters()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background(), "elvis", 100, time.Now().Add(time.Second)))
	}
}
