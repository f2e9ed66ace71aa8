package policy

import (
	"fmt"
	"time"
)

// ResilienceError is the common marker every typed error raised by a policy
// implements, so callers can either discriminate on concrete type (via
// errors.As) or catch the whole family with a single type switch on this
// interface.
type ResilienceError interface {
	error
	resilienceError()
}

// RetryExhaustedError is raised when a retry policy exhausts its attempt
// budget without a success. Cause is the last exception observed, or nil if
// the last failure was a classified result (see LastResult).
type RetryExhaustedError struct {
	Key          PolicyKey
	AttemptsMade int
	Cause        error
	LastResult   any
}

func (e *RetryExhaustedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resily: retry exhausted for %s after %d attempts: %v", e.Key, e.AttemptsMade, e.Cause)
	}
	return fmt.Sprintf("resily: retry exhausted for %s after %d attempts", e.Key, e.AttemptsMade)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }
func (*RetryExhaustedError) resilienceError() {}

// CircuitOpenError is raised when a circuit-breaker policy rejects a call
// because the circuit is open (or its single half-open probe slot is taken).
type CircuitOpenError struct {
	CircuitName string
	State       fmt.Stringer
	RetryAfter  time.Time
}

func (e *CircuitOpenError) Error() string {
	if !e.RetryAfter.IsZero() {
		return fmt.Sprintf("resily: circuit %q open, retry after %s", e.CircuitName, e.RetryAfter.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("resily: circuit %q open", e.CircuitName)
}

func (*CircuitOpenError) resilienceError() {}

// TimeoutError is raised when a timeout policy's deadline elapses before the
// wrapped action completes.
type TimeoutError struct {
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resily: timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }
func (*TimeoutError) resilienceError() {}

// BulkheadRejectReason discriminates why a bulkhead policy rejected a call.
type BulkheadRejectReason string

const (
	BulkheadQueueFull    BulkheadRejectReason = "queue_full"
	BulkheadQueueTimeout BulkheadRejectReason = "queue_timeout"
)

// BulkheadRejectedError is raised when a bulkhead policy cannot admit a call,
// either because its queue is already full or because the caller's
// queue-timeout elapsed while waiting for a slot.
type BulkheadRejectedError struct {
	MaxConcurrency int
	MaxQueueDepth  int
	Reason         BulkheadRejectReason
}

func (e *BulkheadRejectedError) Error() string {
	return fmt.Sprintf("resily: bulkhead rejected (max_concurrency=%d, max_queue_depth=%d, reason=%s)",
		e.MaxConcurrency, e.MaxQueueDepth, e.Reason)
}

func (*BulkheadRejectedError) resilienceError() {}

// HedgingExhaustedError is raised when a hedging policy's primary attempt and
// every launched hedge all fail to produce a winning outcome.
type HedgingExhaustedError struct {
	AttemptsMade int
	Cause        error
}

func (e *HedgingExhaustedError) Error() string {
	return fmt.Sprintf("resily: hedging exhausted after %d attempts: %v", e.AttemptsMade, e.Cause)
}

func (e *HedgingExhaustedError) Unwrap() error { return e.Cause }
func (*HedgingExhaustedError) resilienceError() {}

// CancelledError is raised when a cancellation token fires while a policy is
// suspended (waiting on a backoff delay, a bulkhead slot, a hedge race, or an
// inner action).
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "resily: cancelled"
	}
	return fmt.Sprintf("resily: cancelled: %s", e.Reason)
}

func (*CancelledError) resilienceError() {}

// NormalizeError indicates a fundamentally invalid policy configuration.
type NormalizeError struct {
	Field string
	Value string
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("resily: invalid policy config: %s=%q", e.Field, e.Value)
}
