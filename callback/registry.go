package callback

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a callback from config supplied arguments.
type Factory func(args map[string]any) (Callback, error)

// Registry maps config names to callback factories, so agent configs can
// reference callbacks declaratively.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty callback registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a name. Registering the same name twice is an
// error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("callback %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the callback registered under name.
func (r *Registry) Create(name string, args map[string]any) (Callback, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown callback %q (registered: %v)", name, r.Names())
	}
	return factory(args)
}

// Names returns the registered callback names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
