// Package pipeline composes a controlplane-resolved EffectivePolicy into a
// single policy.Policy[T], in the outermost-first order PolicyWrap
// describes: Timeout wraps CircuitBreaker wraps Retry (which carries its own
// hedge dimension), with the caller's action at the center.
package pipeline

import (
	"context"

	"github.com/cantrip-labs/resily/circuit"
	"github.com/cantrip-labs/resily/classify"
	"github.com/cantrip-labs/resily/controlplane"
	"github.com/cantrip-labs/resily/hedge"
	plcy "github.com/cantrip-labs/resily/policy"
	"github.com/cantrip-labs/resily/retry"
	"github.com/cantrip-labs/resily/timeout"
)

// Config configures a Builder's shared dependencies. Every field is
// optional; a zero value falls back to the same defaults retry.NewExecutor
// and circuit.Default() already use on their own.
type Config struct {
	// Provider resolves EffectivePolicy values for a key. Defaults to an
	// empty controlplane.StaticProvider, which in turn falls back to
	// policy.DefaultPolicyFor.
	Provider controlplane.PolicyProvider
	// CircuitRegistry backs every built pipeline's circuit-breaker stage.
	// Defaults to circuit.Default().
	CircuitRegistry *circuit.Registry
	// Classifiers backs retry/hedge outcome classification by name.
	Classifiers *classify.Registry
	// HedgeTriggers backs named hedge triggers. Defaults to the builtins
	// (see hedge.RegisterBuiltins) via retry.NewExecutorFromOptions.
	HedgeTriggers *hedge.Registry
}

// Builder assembles EffectivePolicy values into composed policies.
type Builder struct {
	cfg Config
}

// NewBuilder constructs a Builder from cfg.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

func (b *Builder) provider() controlplane.PolicyProvider {
	if b.cfg.Provider != nil {
		return b.cfg.Provider
	}
	return &controlplane.StaticProvider{}
}

func (b *Builder) circuitRegistry() *circuit.Registry {
	if b.cfg.CircuitRegistry != nil {
		return b.cfg.CircuitRegistry
	}
	return circuit.Default()
}

// Resolve fetches key's EffectivePolicy from the configured provider.
func (b *Builder) Resolve(ctx context.Context, key plcy.PolicyKey) (plcy.EffectivePolicy, error) {
	return b.provider().GetEffectivePolicy(ctx, key)
}

// Build resolves key through the configured provider and composes the
// resulting policy. Build is a free function, not a method on Builder,
// because Go forbids a method from introducing a type parameter the
// receiver doesn't already carry — the same reason registry.Get and
// registry.TryGet are free functions alongside *registry.Registry.
func Build[T any](ctx context.Context, b *Builder, key plcy.PolicyKey) (plcy.Policy[T], error) {
	pol, err := b.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return BuildFromPolicy[T](b, key, pol), nil
}

// BuildFromPolicy composes an already-resolved EffectivePolicy (e.g. read
// from a controlplane.PolicyCache, or constructed by hand for a test) into a
// Policy[T] without consulting the provider.
func BuildFromPolicy[T any](b *Builder, key plcy.PolicyKey, pol plcy.EffectivePolicy) plcy.Policy[T] {
	var chain []plcy.Policy[T]

	if pol.Retry.OverallTimeout > 0 {
		chain = append(chain, timeout.New[T](timeout.Config{Timeout: pol.Retry.OverallTimeout}))
	}

	if pol.Circuit.Enabled {
		chain = append(chain, circuit.NewPolicy[T](circuit.PolicyConfig{
			CircuitName: key.String(),
			Registry:    b.circuitRegistry(),
			Config: circuit.Config{
				FailureThreshold: pol.Circuit.Threshold,
				BreakDuration:    pol.Circuit.Cooldown,
			},
		}))
	}

	// Retry (and, per pol.Hedge, hedging) runs through a single-key executor
	// scoped to this pipeline. Its circuit dimension is forced off: when
	// pol.Circuit.Enabled, the circuit stage above already guards the call,
	// and running both would double-count one failure against two breakers.
	retryPol := pol
	retryPol.Circuit.Enabled = false

	exec := retry.NewExecutorFromOptions(retry.ExecutorOptions{
		Provider: &controlplane.StaticProvider{
			Policies: map[plcy.PolicyKey]plcy.EffectivePolicy{key: retryPol},
		},
		Classifiers: b.cfg.Classifiers,
		Triggers:    b.cfg.HedgeTriggers,
	})
	chain = append(chain, retry.NewPolicy[T](exec, key))

	return plcy.MustWrap(chain...)
}
