package quota

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func testCounter(t *testing.T) *Counter {
	t.Helper()
	srv := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(context.Background(), "redis://"+srv.Addr(), logger)
	require.NoError(t, err)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_NilRedisURLDisablesTracking(t *testing.T) {
	c, err := New(context.Background(), "", slog.Default())
	require.NoError(t, err)
	require.Nil(t, c)

	exhausted, err := c.Increment(context.Background(), "elvis", 100, time.Now())
	require.NoError(t, err)
	require.False(t, exhausted)
}

func TestIncrement_NotExhaustedBelowLimit(t *testing.T) {
	c := testCounter(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		exhausted, err := c.Increment(context.Background(), "elvis", 10, now)
		require.NoError(t, err)
		require.False(t, exhausted)
	}
}

func TestIncrement_ExhaustedPastLimit(t *testing.T) {
	c := testCounter(t)
	now := time.Now()
	var exhausted bool
	for i := 0; i < 12; i++ {
		var err error
		exhausted, err = c.Increment(context.Background(), "elvis", 10, now)
		require.NoError(t, err)
	}
	require.True(t, exhausted)
}

func TestIncrement_ZeroLimitNeverExhausts(t *testing.T) {
	c := testCounter(t)
	exhausted, err := c.Increment(context.Background(), "unlimited", 0, time.Now())
	require.NoError(t, err)
	require.False(t, exhausted)
}

func TestRemaining_ReflectsUsage(t *testing.T) {
	c := testCounter(t)
	now := time.Now()
	_, err := c.Increment(context.Background(), "elvis", 10, now)
	require.NoError(t, err)

	remaining, err := c.Remaining(context.Background(), "elvis", 10, now)
	require.NoError(t, err)
	require.Equal(t, int64(9), remaining)
}

func TestIncrement_SeparateProvidersDoNotShareCounters(t *testing.T) {
	c := testCounter(t)
	now := time.Now()
	_, err := c.Increment(context.Background(), "elvis", 10, now)
	require.NoError(t, err)

	remaining, err := c.Remaining(context.Background(), "ga", 10, now)
	require.NoError(t, err)
	require.Equal(t, int64(10), remaining)
}
