// Package event provides a process-wide event bus policies can publish
// resilience occurrences to, independent of the retry package's richer
// per-call observe.Observer. It exists for the standalone policy.Policy[T]
// implementations (bulkhead, timeout, fallback, circuit) that have no
// executor-level observability hook of their own.
package event

import (
	"time"

	"github.com/cantrip-labs/resily/circuit"
	"github.com/cantrip-labs/resily/policy"
)

// Event is the sealed interface every published event implements. Kind
// identifies the concrete type without a type switch for simple consumers
// (logging, metrics labels).
type Event interface {
	Kind() string
	Time() time.Time
	event()
}

// base carries the fields every event shares.
type base struct {
	At time.Time
}

func (b base) Time() time.Time { return b.At }
func (base) event()            {}

// RetryEvent describes one retry attempt of a call. The package defines the
// type and NewRetryEvent; no policy in this module publishes it.
type RetryEvent struct {
	base
	Key     policy.PolicyKey
	Attempt int
	Err     error
}

func (RetryEvent) Kind() string { return "retry" }

// NewRetryEvent constructs a RetryEvent stamped with the current time.
func NewRetryEvent(key policy.PolicyKey, attempt int, err error) RetryEvent {
	return RetryEvent{base: base{At: time.Now()}, Key: key, Attempt: attempt, Err: err}
}

// CircuitOpenEvent is published when a circuit breaker transitions to open.
type CircuitOpenEvent struct {
	base
	CircuitName string
	RetryAfter  time.Time
}

func (CircuitOpenEvent) Kind() string { return "circuit_open" }

// CircuitCloseEvent is published when a circuit breaker transitions to
// closed after a successful half-open recovery.
type CircuitCloseEvent struct {
	base
	CircuitName string
}

func (CircuitCloseEvent) Kind() string { return "circuit_close" }

// CircuitHalfOpenEvent is published when a circuit breaker transitions to
// half-open, admitting its single probe.
type CircuitHalfOpenEvent struct {
	base
	CircuitName string
}

func (CircuitHalfOpenEvent) Kind() string { return "circuit_half_open" }

// TimeoutEvent is published when a timeout policy's deadline elapses before
// the wrapped action completes.
type TimeoutEvent struct {
	base
	Timeout time.Duration
}

func (TimeoutEvent) Kind() string { return "timeout" }

// NewTimeoutEvent constructs a TimeoutEvent stamped with the current time.
func NewTimeoutEvent(timeout time.Duration) TimeoutEvent {
	return TimeoutEvent{base: base{At: time.Now()}, Timeout: timeout}
}

// FallbackEvent is published when a fallback policy substitutes a
// replacement value, whether triggered by an error or a result predicate.
type FallbackEvent struct {
	base
	Cause error
}

func (FallbackEvent) Kind() string { return "fallback" }

// NewFallbackEvent constructs a FallbackEvent stamped with the current time.
func NewFallbackEvent(cause error) FallbackEvent {
	return FallbackEvent{base: base{At: time.Now()}, Cause: cause}
}

// BulkheadRejectedEvent is published when a bulkhead policy rejects a call,
// either because its queue is full or because a queued caller timed out.
type BulkheadRejectedEvent struct {
	base
	MaxConcurrency int
	MaxQueueDepth  int
	Reason         string
}

func (BulkheadRejectedEvent) Kind() string { return "bulkhead_rejected" }

// NewBulkheadRejectedEvent constructs a BulkheadRejectedEvent stamped with
// the current time.
func NewBulkheadRejectedEvent(maxConcurrency, maxQueueDepth int, reason string) BulkheadRejectedEvent {
	return BulkheadRejectedEvent{
		base:           base{At: time.Now()},
		MaxConcurrency: maxConcurrency,
		MaxQueueDepth:  maxQueueDepth,
		Reason:         reason,
	}
}

// circuitStateEventFor builds the right transition event for a breaker
// state, used by the circuit-breaker publishing adapter.
func circuitStateEventFor(name string, s circuit.State, retryAfter time.Time, at time.Time) Event {
	b := base{At: at}
	switch s {
	case circuit.StateOpen:
		return CircuitOpenEvent{base: b, CircuitName: name, RetryAfter: retryAfter}
	case circuit.StateHalfOpen:
		return CircuitHalfOpenEvent{base: b, CircuitName: name}
	default:
		return CircuitCloseEvent{base: b, CircuitName: name}
	}
}
