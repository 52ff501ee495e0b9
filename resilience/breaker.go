package resilience

import (
	"sync"
	"time"

	"github.com/withobsrvr/medallion-foundry/pipelineerr"
)

// breakerRegistry caches one *CircuitBreaker per (component, key) pair for
// the lifetime of the process, per spec.md 4.1's "circuit-breaker state is
// owned by the component that initialized it" and spec.md 4's
// process-scoped breaker state: a long-running --serve invocation must
// accumulate failures across runs, not reset the breaker on every
// pipeline.Runner.Run call.
var (
	breakerRegistryMu sync.Mutex
	breakerRegistry   = map[string]*CircuitBreaker{}
)

// GetOrCreateBreaker returns the process-wide breaker for (component,
// key), constructing it on first use with the supplied parameters.
// Subsequent calls with the same (component, key) ignore the parameters
// and return the existing breaker, since breaker state must not reset
// between calls.
func GetOrCreateBreaker(component, key string, failureThreshold int, cooldown time.Duration, halfOpenMaxCalls int) *CircuitBreaker {
	breakerRegistryMu.Lock()
	defer breakerRegistryMu.Unlock()

	regKey := component + "\x00" + key
	if b, ok := breakerRegistry[regKey]; ok {
		return b
	}
	b := NewCircuitBreaker(component, key, failureThreshold, cooldown, halfOpenMaxCalls)
	breakerRegistry[regKey] = b
	return b
}

// State is one of closed, open, half_open.
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

// StateChangeHook is invoked whenever a breaker transitions state, for
// observability (structured logging, Prometheus counters).
type StateChangeHook func(component, breakerKey string, newState State)

// CircuitBreaker implements the closed/open/half_open state machine from
// spec.md 4.1. half_open permits at most HalfOpenMaxCalls concurrent
// probes; a success closes it, a failure re-opens it and resets the
// cooldown clock.
type CircuitBreaker struct {
	Component        string
	Key              string
	FailureThreshold int
	Cooldown         time.Duration
	HalfOpenMaxCalls int
	OnStateChange     StateChangeHook

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenInUse int
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(component, key string, failureThreshold int, cooldown time.Duration, halfOpenMaxCalls int) *CircuitBreaker {
	if halfOpenMaxCalls < 1 {
		halfOpenMaxCalls = 1
	}
	return &CircuitBreaker{
		Component:        component,
		Key:              key,
		FailureThreshold: failureThreshold,
		Cooldown:         cooldown,
		HalfOpenMaxCalls: halfOpenMaxCalls,
		state:            Closed,
	}
}

// Allow reports whether a call may proceed right now, transitioning
// open->half_open when the cooldown has elapsed. It reserves a half-open
// call slot if it returns true while in the half_open state.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) >= b.Cooldown {
			b.transition(HalfOpen)
			b.halfOpenInUse = 1
			return nil
		}
		return pipelineerr.CircuitOpenError(b.Key)
	case HalfOpen:
		if b.halfOpenInUse >= b.HalfOpenMaxCalls {
			return pipelineerr.CircuitOpenError(b.Key)
		}
		b.halfOpenInUse++
		return nil
	}
	return nil
}

// RecordSuccess transitions half_open->closed and resets the counter.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.halfOpenInUse--
	}
	b.failures = 0
	if b.state != Closed {
		b.transition(Closed)
	}
}

// RecordFailure increments the failure counter (closed) or immediately
// re-opens (half_open), resetting the cooldown clock either way it opens.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenInUse--
		b.transition(Open)
	case Closed:
		b.failures++
		if b.FailureThreshold > 0 && b.failures >= b.FailureThreshold {
			b.transition(Open)
		}
	}
}

// SetStateChangeHook installs (or replaces) the breaker's observability
// hook under the same lock transition() uses, so concurrent callers
// racing to (re)attach a hook on a registry-shared breaker never see a
// torn write.
func (b *CircuitBreaker) SetStateChangeHook(hook StateChangeHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.OnStateChange = hook
}

// State returns the current state (for tests and /health reporting).
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) transition(to State) {
	b.state = to
	if to == Open {
		b.openedAt = time.Now()
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(b.Component, b.Key, to)
	}
}
