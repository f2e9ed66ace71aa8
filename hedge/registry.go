package hedge

import (
	"strings"
	"sync"
)

// Registry is a thread-safe name → Trigger map, analogous to classify.Registry
// and budget.Registry — retry policies reference hedge triggers by name so
// they can be swapped centrally without touching call sites.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Trigger
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Trigger)}
}

// Register registers a trigger under name, panicking if name is empty or
// trigger is nil — programmer errors caught at wiring time, not call time.
func (r *Registry) Register(name string, trigger Trigger) {
	name = strings.TrimSpace(name)
	if name == "" {
		panic("hedge.Registry.Register: name cannot be empty")
	}
	if trigger == nil {
		panic("hedge.Registry.Register: trigger cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]Trigger)
	}
	r.m[name] = trigger
}

// Get returns the trigger registered under name, if any.
func (r *Registry) Get(name string) (Trigger, bool) {
	if r == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.m[name]
	return t, ok && t != nil
}

// RegisterBuiltins registers the standard triggers under their conventional
// names ("fixed_delay", "latency_p50", "latency_p90", "latency_p95", "latency_p99").
func RegisterBuiltins(r *Registry) {
	r.Register("fixed_delay", FixedDelayTrigger{})
	r.Register("latency_p50", LatencyTrigger{Percentile: "p50"})
	r.Register("latency_p90", LatencyTrigger{Percentile: "p90"})
	r.Register("latency_p95", LatencyTrigger{Percentile: "p95"})
	r.Register("latency_p99", LatencyTrigger{Percentile: "p99"})
}
