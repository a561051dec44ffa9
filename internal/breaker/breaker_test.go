package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		WindowSamples: 20,
		WindowPeriod:  30 * time.Second,
		ErrorRatio:    0.5,
		MinSamples:    5,
		CoolOff:       30 * time.Second,
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(testConfig())
	require.Equal(t, Closed, b.State())
	require.True(t, b.Allow(time.Now()))
}

func TestBreaker_TripsOpenOnSustainedFailures(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		require.True(t, b.Allow(now))
		b.Record(now, false)
	}
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(now))
}

func TestBreaker_StaysClosedBelowMinSamples(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 4; i++ {
		require.True(t, b.Allow(now))
		b.Record(now, false)
	}
	require.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenAfterCoolOff(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Allow(now)
		b.Record(now, false)
	}
	require.Equal(t, Open, b.State())

	afterCoolOff := now.Add(31 * time.Second)
	require.True(t, b.Allow(afterCoolOff))
	require.Equal(t, HalfOpen, b.State())
}

func TestBreaker_HalfOpenAdmitsOnlyOneProbe(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Allow(now)
		b.Record(now, false)
	}
	afterCoolOff := now.Add(31 * time.Second)
	require.True(t, b.Allow(afterCoolOff))
	require.False(t, b.Allow(afterCoolOff))
}

func TestBreaker_HalfOpenSuccessClosesBreaker(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Allow(now)
		b.Record(now, false)
	}
	afterCoolOff := now.Add(31 * time.Second)
	b.Allow(afterCoolOff)
	b.Record(afterCoolOff, true)
	require.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(testConfig())
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Allow(now)
		b.Record(now, false)
	}
	afterCoolOff := now.Add(31 * time.Second)
	b.Allow(afterCoolOff)
	b.Record(afterCoolOff, false)
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(afterCoolOff.Add(time.Second)))
}

func TestManager_LazilyCreatesPerProviderBreakers(t *testing.T) {
	m := NewManager(testConfig())
	a := m.For("elvis")
	b := m.For("elvis")
	c := m.For("ga")
	require.Same(t, a, b)
	require.NotSame(t, a, c)
}
