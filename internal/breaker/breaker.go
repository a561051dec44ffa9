// Package breaker implements the per-provider circuit breaker state
// machine from spec.md §4.7: Closed -> Open -> HalfOpen -> Closed, tracked
// over a rolling window of recent outcomes. A Breaker is the one piece of
// shared mutable state most of this codebase touches per query, so every
// method here takes the same mutex and nothing it calls blocks on I/O.
package breaker

import (
	"sync"
	"time"
)

// State is the breaker's externally visible status.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config tunes the rolling window, trip threshold, and cool-off. Defaults
// mirror spec.md §4.7 and §9's resolution of the window-size Open Question:
// N=20 or T=30s, whichever window holds more samples; ratio >= 0.5 with
// >= 5 samples trips the breaker; 30s cool-off.
type Config struct {
	WindowSamples int
	WindowPeriod  time.Duration
	ErrorRatio    float64
	MinSamples    int
	CoolOff       time.Duration
}

type outcome struct {
	at      time.Time
	success bool
}

// Breaker is one provider's circuit breaker. The zero value is not usable;
// construct with New.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state        State
	openUntil    time.Time
	halfOpenBusy bool // a probe is currently in flight; don't admit a second one
	history      []outcome
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// Allow reports whether a request may proceed against this provider right
// now, and if so, what "role" it plays: a normal request when Closed, or
// the single admitted probe when HalfOpen. Open returns false until its
// cool-off has elapsed; the first call after that moves the breaker to
// HalfOpen and is admitted as the probe.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if now.Before(b.openUntil) {
			return false
		}
		b.state = HalfOpen
		b.halfOpenBusy = false
		fallthrough
	case HalfOpen:
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true
	default:
		return false
	}
}

// State reports the breaker's current state without side effects (does not
// perform the Open -> HalfOpen transition that Allow does on expiry).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Record reports the outcome of a request this breaker admitted via Allow.
func (b *Breaker) Record(now time.Time, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.halfOpenBusy = false
		if success {
			b.state = Closed
			b.history = nil
		} else {
			b.state = Open
			b.openUntil = now.Add(b.cfg.CoolOff)
			b.history = nil
		}
		return
	}

	b.history = append(b.history, outcome{at: now, success: success})
	b.trim(now)

	if len(b.history) < b.cfg.MinSamples {
		return
	}
	errs := 0
	for _, o := range b.history {
		if !o.success {
			errs++
		}
	}
	ratio := float64(errs) / float64(len(b.history))
	if ratio >= b.cfg.ErrorRatio {
		b.state = Open
		b.openUntil = now.Add(b.cfg.CoolOff)
		b.history = nil
	}
}

// trim drops samples outside the rolling window: keep at least the most
// recent WindowSamples, or everything within WindowPeriod if that's more
// (spec.md: "last N=20 or last T=30s, whichever larger").
func (b *Breaker) trim(now time.Time) {
	cutoff := now.Add(-b.cfg.WindowPeriod)
	firstInPeriod := len(b.history)
	for i, o := range b.history {
		if o.at.After(cutoff) {
			firstInPeriod = i
			break
		}
	}
	byPeriod := b.history[firstInPeriod:]

	if len(b.history) <= b.cfg.WindowSamples {
		// The count window already holds every sample, so it is never
		// smaller than the period window.
		return
	}
	byCount := b.history[len(b.history)-b.cfg.WindowSamples:]

	if len(byPeriod) > len(byCount) {
		b.history = byPeriod
	} else {
		b.history = byCount
	}
}
