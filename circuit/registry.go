package circuit

import (
	"sync"
)

// Registry is a process-wide or per-instance store mapping circuit name to
// shared Breaker state. All policies constructed with the same (registry,
// name) pair observe identical state — the registry holds the state and
// policies reference it by name, never the other way around, so there is no
// back-pointer cycle between a circuit's listener list and the policies
// watching it.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewRegistry creates a new, empty circuit registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the named breaker, creating it with cfg if it does not
// already exist. cfg is ignored if the breaker already exists — the first
// caller to register a name wins its configuration, matching the registry's
// "shared state" contract.
func (r *Registry) GetOrCreate(name string, cfg Config) *Breaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb = NewBreaker(name, cfg)
	r.breakers[name] = cb
	return cb
}

// Get returns the named breaker and whether it exists, without creating it.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cb, ok := r.breakers[name]
	return cb, ok
}

// Names returns every registered circuit name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		out = append(out, name)
	}
	return out
}

// Remove deletes the named breaker from the registry, if present.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}

// Reset clears every breaker from the registry. Intended for tests that
// share the process-wide default registry across cases.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]*Breaker)
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide circuit registry. It is a convenience,
// not a requirement: construct a private *Registry instead wherever
// isolation (parallel tests, multi-tenant hosting) matters.
func Default() *Registry { return defaultRegistry }

// ResetDefault clears the process-wide default registry.
func ResetDefault() { defaultRegistry.Reset() }
