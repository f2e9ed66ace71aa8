package retry

import (
	"context"

	"github.com/cantrip-labs/resily/policy"
)

// Policy adapts an Executor/PolicyKey pair to policy.Policy[T], so retry
// (with whatever hedging and circuit-breaking the bound key's EffectivePolicy
// carries) composes with the other policies through policy.Wrap instead of
// only being reachable via DoValue.
type Policy[T any] struct {
	policy.NopDispose

	exec *Executor
	key  policy.PolicyKey
}

// NewPolicy constructs a retry Policy bound to key, resolved against exec.
// A nil exec uses DefaultExecutor().
func NewPolicy[T any](exec *Executor, key policy.PolicyKey) *Policy[T] {
	if exec == nil {
		exec = DefaultExecutor()
	}
	return &Policy[T]{exec: exec, key: key}
}

// Executor exposes the bound executor, e.g. for callers that also want
// DoValueWithTimeline diagnostics for the same key.
func (p *Policy[T]) Executor() *Executor { return p.exec }

// Key returns the PolicyKey this Policy resolves against.
func (p *Policy[T]) Key() policy.PolicyKey { return p.key }

func (p *Policy[T]) Execute(ctx context.Context, action policy.Action[T]) (T, error) {
	return DoValue[T](ctx, p.exec, p.key, OperationValue[T](action))
}
