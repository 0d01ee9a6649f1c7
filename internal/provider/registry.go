package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named adapters. Safe for concurrent reads; adapters are
// normally all registered once at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own Name(). Panics on duplicate
// registration, since that can only happen from a programming error at
// startup.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Name()]; exists {
		panic(fmt.Sprintf("provider: adapter %q already registered", a.Name()))
	}
	r.adapters[a.Name()] = a
}

// Get returns the adapter for name, or false if unknown.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// Descriptor is the read-only projection of a provider exposed through
// the API surface's "list providers" action.
type Descriptor struct {
	Name         string       `json:"name"`
	DisplayName  string       `json:"displayName"`
	Capabilities Capabilities `json:"capabilities"`
}

// List returns every registered provider's descriptor, sorted by name for
// a stable API response.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, Descriptor{
			Name:         a.Name(),
			DisplayName:  a.DisplayName(),
			Capabilities: a.Capabilities(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
