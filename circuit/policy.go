package circuit

import (
	"context"

	"github.com/cantrip-labs/resily/classify"
	plcy "github.com/cantrip-labs/resily/policy"
)

// PolicyConfig configures a circuit breaker Policy.
type PolicyConfig struct {
	// CircuitName identifies the shared breaker in Registry. Required.
	CircuitName string
	// Registry supplies the shared breaker. Defaults to Default() if nil.
	Registry *Registry
	Config
	// Classifier decides whether an attempt counts as a circuit failure.
	// Defaults to classify.AlwaysRetryOnError's notion of failure (any
	// non-nil error that isn't context cancellation counts).
	Classifier classify.Classifier
}

// Policy is a policy.Policy[T] backed by a named, shared circuit breaker. It
// claims the half-open probe slot (or rejects outright, on an open circuit)
// before invoking action, and feeds the action's outcome back into the
// breaker via the configured Classifier.
type Policy[T any] struct {
	plcy.NopDispose

	name       string
	breaker    *Breaker
	classifier classify.Classifier
}

// NewPolicy constructs a circuit breaker Policy from cfg.
func NewPolicy[T any](cfg PolicyConfig) *Policy[T] {
	reg := cfg.Registry
	if reg == nil {
		reg = Default()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.AlwaysRetryOnError{}
	}
	breaker := reg.GetOrCreate(cfg.CircuitName, cfg.Config)
	return &Policy[T]{name: cfg.CircuitName, breaker: breaker, classifier: classifier}
}

// Breaker exposes the underlying shared breaker, e.g. for metrics adapters.
func (p *Policy[T]) Breaker() *Breaker { return p.breaker }

func (p *Policy[T]) Execute(ctx context.Context, action plcy.Action[T]) (T, error) {
	var zero T

	decision := p.breaker.Allow(ctx)
	if !decision.Allowed {
		return zero, &plcy.CircuitOpenError{
			CircuitName: p.name,
			State:       decision.State,
			RetryAfter:  decision.RetryAfter,
		}
	}

	result, err := action(ctx)

	out := p.classifier.Classify(result, err)
	switch out.Kind {
	case classify.OutcomeSuccess:
		p.breaker.RecordSuccess(ctx)
	case classify.OutcomeRetryable, classify.OutcomeNonRetryable:
		p.breaker.RecordFailure(ctx)
	case classify.OutcomeAbort:
		// Aborted outcomes (e.g. context cancellation) bypass the circuit
		// entirely: they reflect the caller giving up, not the downstream
		// call site misbehaving.
	}

	return result, err
}
