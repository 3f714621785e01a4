// ABOUTME: Name-keyed registry of configured provider adapters.
// ABOUTME: The sole extension point for plugging in new providers.

package provider

import (
	"sort"
	"strings"
)

// Registry maps lower-cased provider names to adapters.
//
// Registration happens only during startup, before any request is served, so
// mutation needs no lock; concurrent Get calls on the resulting read-only map
// are safe.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register stores an adapter under its lower-cased name. The last
// registration for a name wins.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

// Get returns the adapter for name, case-insensitively.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names returns all registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
