// Package breaker gates calls to a remote dependency behind a three-state
// circuit breaker built on sony/gobreaker. The breaker state is an explicit
// injected value, never a package-level singleton.
package breaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

// ErrOpen is returned when the breaker rejects a call without dispatching it:
// either the circuit is open and the cool-down has not elapsed, or a
// half-open probe is already in flight.
var ErrOpen = errors.New("breaker: circuit is open")

const (
	// DefaultFailureThreshold is the number of consecutive failures that
	// trips the breaker open.
	DefaultFailureThreshold uint32 = 5
	// DefaultCooldown is how long the breaker stays open before allowing a
	// single half-open probe.
	DefaultCooldown = 30 * time.Second
)

// halfOpenProbes pins the half-open window to exactly one in-flight probe.
const halfOpenProbes uint32 = 1

// State mirrors the breaker state machine for observability and tests.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config holds the breaker tuning knobs. Zero values fall back to defaults.
type Config struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}

	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}

	return c
}

// Counts exposes the breaker's failure accounting.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker wraps one named remote dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a breaker for the named dependency.
func New(name string, cfg Config, logger log.Logger) *Breaker {
	cfg = cfg.withDefaults()

	if logger == nil {
		logger = log.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpenProbes,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Errorf("breaker [%s] opened (%s -> %s): requests will fast-fail", name, from, to)
			case gobreaker.StateHalfOpen:
				logger.Warnf("breaker [%s] half-open: probing recovery", name)
			case gobreaker.StateClosed:
				logger.Infof("breaker [%s] closed: dependency healthy", name)
			}
		},
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. A returned error from fn counts as a
// breaker failure; callers that must not count an outcome (business
// rejections) carry it inside the result value instead of the error return.
// When the circuit rejects the call, ErrOpen is returned and fn is never
// invoked.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrOpen, b.name)
		}

		return nil, err
	}

	return result, nil
}

// Name returns the dependency name this breaker protects.
func (b *Breaker) Name() string { return b.name }

// State returns the current breaker state.
func (b *Breaker) State() State {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Counts returns the current failure accounting.
func (b *Breaker) Counts() Counts {
	c := b.cb.Counts()

	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}
