package metamodel

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/v0idness/archipanion-ve/internal/domain"
)

// Registry maps exact names to factories. It is populated at startup.
type Registry[F any] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]F
}

// NewRegistry creates an empty registry; kind labels error messages.
func NewRegistry[F any](kind string) *Registry[F] {
	return &Registry[F]{kind: kind, entries: make(map[string]F)}
}

// Register adds f under name. Names are unique.
func (r *Registry[F]) Register(name string, f F) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s %q registered twice", domain.ErrInvalidInput, r.kind, name)
	}
	r.entries[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry[F]) Lookup(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.entries[name]
	if !ok {
		var zero F
		return zero, fmt.Errorf("%w: %s %q", domain.ErrFactoryNotFound, r.kind, name)
	}
	return f, nil
}

// Names returns registered names in lexical order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}
