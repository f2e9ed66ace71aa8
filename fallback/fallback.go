// Package fallback substitutes a caller-supplied replacement value when an
// action fails (by exception or, optionally, by an unacceptable result),
// running a side-effect callback first so callers can log or record metrics
// before the substitution takes effect.
package fallback

import (
	"context"

	"github.com/cantrip-labs/resily/classify"
	"github.com/cantrip-labs/resily/event"
	plcy "github.com/cantrip-labs/resily/policy"
)

// Action produces the replacement value given the triggering error, which is
// nil when the fallback was triggered by a result predicate or classifier
// rather than an exception.
type Action[T any] func(ctx context.Context, cause error) (T, error)

// Config configures a Policy.
type Config[T any] struct {
	// FallbackAction computes the replacement value. Required.
	FallbackAction Action[T]
	// ShouldHandle decides whether an error triggers the fallback. Defaults
	// to "always" if nil.
	ShouldHandle func(err error) bool
	// ShouldHandleResult, if set, is the sole gate on a successful result:
	// true triggers the fallback, false returns the result unchanged. It
	// takes strict precedence over Classifier — Classifier is not consulted
	// when ShouldHandleResult is set.
	ShouldHandleResult func(result T) bool
	// Classifier, used only when ShouldHandleResult is nil, triggers the
	// fallback on any non-success classification of a successful result.
	Classifier classify.Classifier
	// OnFallback is invoked before FallbackAction runs, with the triggering
	// error (nil if triggered by a result). Must not panic.
	OnFallback func(cause error)
	// Publisher, if set, receives a FallbackEvent whenever the fallback
	// runs, in addition to OnFallback.
	Publisher *event.Bus
}

// Policy is a policy.Policy[T] implementing fallback substitution.
type Policy[T any] struct {
	plcy.NopDispose
	cfg Config[T]
}

// New constructs a fallback Policy from cfg.
func New[T any](cfg Config[T]) *Policy[T] {
	return &Policy[T]{cfg: cfg}
}

func (p *Policy[T]) Execute(ctx context.Context, action plcy.Action[T]) (T, error) {
	result, err := action(ctx)

	if err != nil {
		handle := p.cfg.ShouldHandle
		if handle == nil {
			handle = func(error) bool { return true }
		}
		if !handle(err) {
			return result, err
		}
		return p.runFallback(ctx, err)
	}

	if p.cfg.ShouldHandleResult != nil {
		if !p.cfg.ShouldHandleResult(result) {
			return result, nil
		}
		return p.runFallback(ctx, nil)
	}

	if p.cfg.Classifier != nil {
		out := p.cfg.Classifier.Classify(result, nil)
		if out.Kind != classify.OutcomeSuccess {
			return p.runFallback(ctx, nil)
		}
	}

	return result, nil
}

func (p *Policy[T]) runFallback(ctx context.Context, cause error) (T, error) {
	if p.cfg.OnFallback != nil {
		p.cfg.OnFallback(cause)
	}
	if p.cfg.Publisher != nil {
		p.cfg.Publisher.Emit(event.NewFallbackEvent(cause))
	}
	return p.cfg.FallbackAction(ctx, cause)
}
