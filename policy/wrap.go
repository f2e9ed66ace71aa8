package policy

import (
	"context"
	"errors"
)

// PolicyWrap is an ordered, flat composition of policies: policies[0] is
// outermost. Executing a PolicyWrap is equivalent to nesting calls to
// Execute from outermost to innermost, with the caller's action at the
// center.
type PolicyWrap[T any] struct {
	policies []Policy[T]
}

// ErrEmptyWrap is returned by Wrap when given zero policies.
var ErrEmptyWrap = errors.New("resily: policy.Wrap requires at least one policy")

// Wrap composes policies into a single Policy[T]. A single policy is
// returned unchanged (no PolicyWrap is allocated). Passing zero policies is
// an argument error. If any element of policies is itself a *PolicyWrap[T],
// its sequence is flattened into the result rather than nested, so a
// PolicyWrap's Policies() list never contains another PolicyWrap.
func Wrap[T any](policies ...Policy[T]) (Policy[T], error) {
	if len(policies) == 0 {
		return nil, ErrEmptyWrap
	}

	flat := flatten(policies)
	if len(flat) == 1 {
		return flat[0], nil
	}
	return &PolicyWrap[T]{policies: flat}, nil
}

// MustWrap is Wrap, panicking on error. Intended for static, compile-time-known
// compositions (e.g. package-level pipeline construction).
func MustWrap[T any](policies ...Policy[T]) Policy[T] {
	p, err := Wrap(policies...)
	if err != nil {
		panic(err)
	}
	return p
}

// WrapInner appends inner to this wrap's policy list, flattening inner's own
// sequence if it is itself a *PolicyWrap[T], and returns a new PolicyWrap.
// The receiver is left unmodified.
func (w *PolicyWrap[T]) WrapInner(inner Policy[T]) *PolicyWrap[T] {
	combined := make([]Policy[T], 0, len(w.policies)+1)
	combined = append(combined, w.policies...)
	combined = append(combined, flatten([]Policy[T]{inner})...)
	return &PolicyWrap[T]{policies: combined}
}

// Policies returns the flat, outermost-first policy sequence. The returned
// slice is a copy; mutating it does not affect the PolicyWrap.
func (w *PolicyWrap[T]) Policies() []Policy[T] {
	out := make([]Policy[T], len(w.policies))
	copy(out, w.policies)
	return out
}

// Execute runs action through the composed chain, outermost first.
func (w *PolicyWrap[T]) Execute(ctx context.Context, action Action[T]) (T, error) {
	return w.executeFrom(ctx, 0, action)
}

func (w *PolicyWrap[T]) executeFrom(ctx context.Context, idx int, action Action[T]) (T, error) {
	if idx >= len(w.policies) {
		return action(ctx)
	}
	next := func(ctx context.Context) (T, error) {
		return w.executeFrom(ctx, idx+1, action)
	}
	return w.policies[idx].Execute(ctx, next)
}

// Dispose disposes every contained policy, in order, collecting and joining
// any errors rather than stopping at the first one.
func (w *PolicyWrap[T]) Dispose() error {
	var errs []error
	for _, p := range w.policies {
		if err := p.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func flatten[T any](policies []Policy[T]) []Policy[T] {
	out := make([]Policy[T], 0, len(policies))
	for _, p := range policies {
		if inner, ok := p.(*PolicyWrap[T]); ok {
			out = append(out, inner.policies...)
			continue
		}
		out = append(out, p)
	}
	return out
}
