package retry

import (
	"github.com/cantrip-labs/resily/circuit"
	"github.com/cantrip-labs/resily/policy"
)

// circuitBreakerFor resolves the named circuit breaker backing key's circuit
// policy, creating it in the executor's registry (or the process-wide
// default, if none was configured) on first use. It returns nil when the
// circuit policy is disabled.
func (e *Executor) circuitBreakerFor(key policy.PolicyKey, cfg policy.CircuitPolicy) *circuit.Breaker {
	if !cfg.Enabled {
		return nil
	}
	reg := e.circuits
	if reg == nil {
		reg = circuit.Default()
	}
	return reg.GetOrCreate(key.String(), circuit.Config{
		FailureThreshold: cfg.Threshold,
		BreakDuration:    cfg.Cooldown,
	})
}
