// Package policy defines the vocabulary every resilience policy shares: the
// generic Policy[T] capability, the PolicyKey naming scheme, the composed
// PolicyWrap, and the sealed error taxonomy every policy raises.
package policy

import "context"

// Action is the caller-supplied operation a policy wraps.
type Action[T any] func(ctx context.Context) (T, error)

// Policy is the capability every resilience policy implements: execute an
// action, and release any policy-local resources when done.
//
// Go has no way to express "polymorphic over T" as a single non-generic
// interface, so Policy is generic over the result type; callers instantiate
// it once per T, the same way the rest of this module (and the teacher's own
// OperationValue[T]) thread T through.
type Policy[T any] interface {
	// Execute runs action, applying this policy's behavior around it.
	Execute(ctx context.Context, action Action[T]) (T, error)

	// Dispose releases policy-local resources (listener subscriptions,
	// background goroutines). Idempotent; executing a policy after Dispose
	// is undefined behavior, not a checked error.
	Dispose() error
}

// NopDispose is embeddable by policies with no resources to release.
type NopDispose struct{}

func (NopDispose) Dispose() error { return nil }
