package services

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the inter-module service lookup. Modules register their
// public interface during Init; consumers resolve it by name instead of
// importing the providing module.
type Registry struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]interface{})}
}

// Register stores a service under name, replacing any previous entry.
func Register[T any](r *Registry, name string, service T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = service
}

// Get retrieves a service by name with type safety
func Get[T any](r *Registry, name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T

	service, exists := r.services[name]
	if !exists {
		return zero, fmt.Errorf("service '%s' not found", name)
	}

	typedService, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' has wrong type", name)
	}

	return typedService, nil
}

// MustGet retrieves a service and panics if not found (for initialization)
func MustGet[T any](r *Registry, name string) T {
	service, err := Get[T](r, name)
	if err != nil {
		panic(fmt.Sprintf("Required service not available: %v", err))
	}
	return service
}

// Names returns all registered service names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
