package event

import (
	"time"

	"github.com/cantrip-labs/resily/circuit"
)

// PublishCircuitEvents wires b to breaker's state-change notifications,
// emitting CircuitOpenEvent/CircuitHalfOpenEvent/CircuitCloseEvent as the
// breaker transitions. The returned subscription can be used to stop
// forwarding.
func PublishCircuitEvents(b *Bus, circuitName string, breaker *circuit.Breaker) circuit.Subscription {
	return breaker.OnStateChange(func(from, to circuit.State, snap circuit.Snapshot) {
		b.Emit(circuitStateEventFor(circuitName, to, snap.OpenedAt, time.Now()))
	})
}
