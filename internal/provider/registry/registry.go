package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbz/verdant/internal/domain"
)

// Registry implements the AdapterRegistry interface, keyed by capability
// and provider name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Capability]map[string]domain.Adapter
	order    map[domain.Capability][]string
}

// NewRegistry creates a new adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Capability]map[string]domain.Adapter),
		order:    make(map[domain.Capability][]string),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(_ context.Context, adapter domain.Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := adapter.Name()
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	capability := adapter.Capability()

	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.adapters[capability]
	if !ok {
		byName = make(map[string]domain.Adapter)
		r.adapters[capability] = byName
	}

	if _, exists := byName[name]; exists {
		return fmt.Errorf("adapter %s already registered for capability %s", name, capability)
	}

	byName[name] = adapter
	r.order[capability] = append(r.order[capability], name)

	return nil
}

// Get retrieves an adapter by capability and name.
func (r *Registry) Get(_ context.Context, capability domain.Capability, name string) (domain.Adapter, error) {
	if name == "" {
		return nil, errors.New("adapter name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[capability][name]
	if !exists {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrAdapterNotFound, capability, name)
	}

	return adapter, nil
}

// List returns the names of all adapters registered for a capability, in
// registration order.
func (r *Registry) List(_ context.Context, capability domain.Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order[capability]))
	copy(names, r.order[capability])

	return names
}
