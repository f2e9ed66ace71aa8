// Package timeout bounds an action's execution time, racing it against a
// deadline derived from context.WithTimeout — grounded on the teacher's
// sleepWithContext select-race pattern (retry/executor.go), generalized
// from "race a sleep against cancellation" to "race an action against
// cancellation".
package timeout

import (
	"context"
	"time"

	"github.com/cantrip-labs/resily/event"
	plcy "github.com/cantrip-labs/resily/policy"
)

// Config configures a Policy.
type Config struct {
	// Timeout bounds how long Execute waits for the action. <= 0 disables
	// the bound: the action runs directly under ctx.
	Timeout time.Duration
	// Publisher, if set, receives a TimeoutEvent whenever the deadline
	// elapses before the action completes.
	Publisher *event.Bus
}

// Policy is a policy.Policy[T] enforcing a per-call timeout.
type Policy[T any] struct {
	plcy.NopDispose
	timeout   time.Duration
	publisher *event.Bus
}

// New constructs a timeout Policy.
func New[T any](cfg Config) *Policy[T] {
	return &Policy[T]{timeout: cfg.Timeout, publisher: cfg.Publisher}
}

// result carries an action's outcome across the goroutine boundary.
type result[T any] struct {
	value T
	err   error
}

func (p *Policy[T]) Execute(ctx context.Context, action plcy.Action[T]) (T, error) {
	var zero T
	if p.timeout <= 0 {
		return action(ctx)
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := action(deadlineCtx)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-deadlineCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if p.publisher != nil {
			p.publisher.Emit(event.NewTimeoutEvent(p.timeout))
		}
		return zero, &plcy.TimeoutError{Timeout: p.timeout, Cause: deadlineCtx.Err()}
	}
}
