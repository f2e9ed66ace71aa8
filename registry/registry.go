// Package registry provides a named store of pre-configured policies,
// mirroring circuit.Registry's "shared state behind a name" shape but for
// arbitrary policy.Policy[T] values of possibly different T, which Go can
// only hold behind `any` and recover via a generic free function (methods
// cannot introduce their own type parameters).
package registry

import (
	"fmt"
	"sync"
)

// AlreadyExistsError is returned by Add when name is already registered.
type AlreadyExistsError struct{ Name string }

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("resily: registry: %q already exists", e.Name)
}

// NotFoundError is returned by Replace and Get when name is absent.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resily: registry: %q not found", e.Name)
}

// TypeMismatchError is returned by Get[T] when name resolves to a value that
// is not a T.
type TypeMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("resily: registry: %q is a %s, not a %s", e.Name, e.Got, e.Want)
}

// Registry is a namespaced, string-keyed store of arbitrary values (in
// practice, policy.Policy[T] instances for varying T). Safe for concurrent
// use.
type Registry struct {
	mu        sync.Mutex
	namespace string
	entries   map[string]any
}

// New creates an empty Registry. An empty namespace stores keys unprefixed;
// a non-empty namespace prefixes every stored key with "namespace:" so that
// registries sharing a namespace value observe the same prefix scheme, but
// a zero namespace from a caller's perspective is still invisible — Keys,
// ToMap, and every accessor always take and return the logical (unprefixed)
// name.
func New(namespace string) *Registry {
	return &Registry{namespace: namespace, entries: make(map[string]any)}
}

func (r *Registry) storageKey(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + ":" + name
}

// Add registers value under name, failing if name already exists.
func (r *Registry) Add(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.storageKey(name)
	if _, ok := r.entries[key]; ok {
		return &AlreadyExistsError{Name: name}
	}
	r.entries[key] = value
	return nil
}

// AddOrReplace registers value under name unconditionally.
func (r *Registry) AddOrReplace(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.storageKey(name)] = value
}

// Replace overwrites the value stored under name, failing if name is absent.
func (r *Registry) Replace(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.storageKey(name)
	if _, ok := r.entries[key]; !ok {
		return &NotFoundError{Name: name}
	}
	r.entries[key] = value
	return nil
}

// Remove deletes name, if present. Removing an absent name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, r.storageKey(name))
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]any)
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[r.storageKey(name)]
	return ok
}

// Keys returns every registered logical name, with the namespace prefix (if
// any) stripped. Order is unspecified.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for key := range r.entries {
		out = append(out, r.stripPrefix(key))
	}
	return out
}

// ToMap returns a snapshot of every logical name to its stored value.
// Mutating the returned map does not affect the Registry.
func (r *Registry) ToMap() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.entries))
	for key, val := range r.entries {
		out[r.stripPrefix(key)] = val
	}
	return out
}

// Length returns the number of registered entries.
func (r *Registry) Length() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) stripPrefix(key string) string {
	if r.namespace == "" {
		return key
	}
	return key[len(r.namespace)+1:]
}

func (r *Registry) lookup(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	val, ok := r.entries[r.storageKey(name)]
	return val, ok
}

// Get resolves name from r and asserts it to T, failing with a NotFoundError
// or TypeMismatchError as appropriate. It is a free function, not a method,
// because Go methods cannot introduce a type parameter the receiver doesn't
// already carry.
func Get[T any](r *Registry, name string) (T, error) {
	var zero T
	val, ok := r.lookup(name)
	if !ok {
		return zero, &NotFoundError{Name: name}
	}
	typed, ok := val.(T)
	if !ok {
		return zero, &TypeMismatchError{Name: name, Want: fmt.Sprintf("%T", zero), Got: fmt.Sprintf("%T", val)}
	}
	return typed, nil
}

// TryGet resolves name from r and asserts it to T, returning (zero, false)
// if name is absent or not a T instead of an error.
func TryGet[T any](r *Registry, name string) (T, bool) {
	var zero T
	val, ok := r.lookup(name)
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

var defaultRegistry = New("")

// Default returns the process-wide policy registry. Like circuit.Default(),
// it is a convenience: construct a private *Registry wherever isolation
// (parallel tests, multi-tenant hosting) matters.
func Default() *Registry { return defaultRegistry }

// ResetDefault clears the process-wide default registry.
func ResetDefault() { defaultRegistry.Clear() }
