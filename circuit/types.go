package circuit

import (
	"context"
	"time"
)

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed.
	StateOpen                  // Circuit open, requests fast-failed.
	StateHalfOpen              // Probing mode, limited requests allowed.
)

const (
	ReasonCircuitOpen               = "circuit_open"
	ReasonCircuitHalfOpenProbeLimit = "circuit_half_open_probe_limit"
)

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

// Decision represents the result of checking a circuit breaker.
type Decision struct {
	Allowed    bool
	State      State
	Reason     string
	RetryAfter time.Time
}

// Snapshot is a point-in-time read of a circuit's counters, taken under the
// breaker's lock. Exposed for metrics adapters and tests; never mutate it.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	ConsecutiveSuccess  int
	OpenedAt            time.Time
	TotalCalls          int64
	SuccessfulCalls     int64
	FailedCalls         int64
	RejectedCalls       int64
	LastTransitionAt    time.Time
}

// Subscription is a handle returned by OnStateChange allowing deregistration.
type Subscription interface {
	Unsubscribe()
}

// StateChangeListener is invoked synchronously, while the breaker's internal
// lock is held, whenever the circuit transitions. Listeners must not block
// or call back into the breaker (Allow/RecordSuccess/RecordFailure) — doing
// so deadlocks.
type StateChangeListener func(from, to State, snap Snapshot)

// CircuitBreaker defines the interface for a circuit breaker.
type CircuitBreaker interface {
	// Allow checks if a request should be allowed.
	Allow(ctx context.Context) Decision

	// RecordSuccess records a successful request execution.
	RecordSuccess(ctx context.Context)

	// RecordFailure records a failed request execution.
	RecordFailure(ctx context.Context)

	// State returns the current state of the breaker.
	State() State

	// Name returns the circuit's registry name.
	Name() string

	// Snapshot returns the current counters.
	Snapshot() Snapshot

	// OnStateChange registers a listener for state transitions.
	OnStateChange(listener StateChangeListener) Subscription
}
