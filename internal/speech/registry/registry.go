// Package registry holds the named backend factories for each speech
// stage. Backend packages register from init; cmd/interviewer selects one
// per stage by name.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownBackend is returned by Create for names with no factory.
var ErrUnknownBackend = errors.New("unknown backend")

// Factory builds a backend from a flat config map.
type Factory[T any] func(config map[string]string) (T, error)

// Registry maps backend names of one kind to their factories.
type Registry[T any] struct {
	kind string

	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// New creates an empty registry for backends of the given kind
// ("asr", "tts", ...). The kind only labels errors.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, factories: map[string]Factory[T]{}}
}

// Register adds a named factory. Registering a name twice panics.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("registry: %s backend %q registered twice", r.kind, name))
	}
	r.factories[name] = factory
}

// Create builds the named backend. Factory errors are wrapped with the
// kind and name.
func (r *Registry[T]) Create(name string, config map[string]string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	var zero T
	if !ok {
		return zero, fmt.Errorf("%w: %s %q (available: %s)",
			ErrUnknownBackend, r.kind, name, strings.Join(r.List(), ", "))
	}
	b, err := factory(config)
	if err != nil {
		return zero, fmt.Errorf("%s backend %q: %w", r.kind, name, err)
	}
	return b, nil
}

// List returns the registered names in sorted order.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
