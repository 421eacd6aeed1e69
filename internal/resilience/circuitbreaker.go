// Package resilience guards calls to remote collaborators.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open) that
// stops the assistant from waiting on a classifier or chat backend that keeps
// failing. [Chain] tries an ordered list of backends, each behind its own
// breaker, and is what the LLM failover is built on.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels log lines and metrics.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 20s.
	Cooldown time.Duration

	// HalfOpenProbes is the number of successful probes needed to close again.
	// Default: 1.
	HalfOpenProbes int

	// OnStateChange, if set, is called after every transition with the lock
	// released.
	OnStateChange func(name string, from, to State)

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probes      int
	onChange    func(name string, from, to State)
	now         func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	probeWins int
}

// NewBreaker creates a [Breaker]. Zero-value config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probes:      cfg.HalfOpenProbes,
		onChange:    cfg.OnStateChange,
		now:         cfg.Now,
	}
}

// Name returns the breaker label.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the breaker is open. While half-open, at most
// HalfOpenProbes calls are in flight at once; extra callers get
// [ErrCircuitOpen].
func (b *Breaker) Execute(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn()

	b.mu.Lock()
	from := b.state
	if callErr != nil {
		b.fail(probe)
	} else {
		b.succeed(probe)
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return callErr
}

// Do is [Breaker.Execute] for functions that return a value.
func Do[R any](b *Breaker, fn func() (R, error)) (R, error) {
	var out R
	err := b.Execute(func() error {
		var innerErr error
		out, innerErr = fn()
		return innerErr
	})
	return out, err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	from := b.state
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.inFlight = 0
		b.probeWins = 0
	}
	if b.state == StateHalfOpen {
		if b.inFlight >= b.probes {
			b.mu.Unlock()
			b.notify(from, StateHalfOpen)
			return false, ErrCircuitOpen
		}
		b.inFlight++
		probe = true
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return probe, nil
}

// fail must be called with b.mu held.
func (b *Breaker) fail(probe bool) {
	if probe {
		b.inFlight--
		b.trip()
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.maxFailures {
		b.trip()
	}
}

// succeed must be called with b.mu held.
func (b *Breaker) succeed(probe bool) {
	if !probe {
		b.failures = 0
		return
	}
	b.inFlight--
	b.probeWins++
	if b.state == StateHalfOpen && b.probeWins >= b.probes {
		b.state = StateClosed
		b.failures = 0
		b.probeWins = 0
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", b.name, "from", from.String())
	default:
		slog.Info("circuit breaker state change", "name", b.name, "from", from.String(), "to", to.String())
	}
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.inFlight = 0
	b.probeWins = 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}
