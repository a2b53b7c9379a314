// Package registry is the process-wide container directory
// cmd/tioserver wires sessions against. spec.md treats the container
// registry as an external collaborator; this package gives that
// collaborator a concrete, minimal shape: containers are created
// on first reference ("create list/map") and looked up by name.
package registry

import (
	"sync"

	"github.com/fren29/tiodb/internal/container"
)

// Registry maps container names to their backing Container.
type Registry struct {
	mu         sync.Mutex
	containers map[string]container.Container
}

func New() *Registry {
	return &Registry{containers: make(map[string]container.Container)}
}

// GetOrCreate returns the named container, creating one of kind
// ("list" or "map") if it doesn't exist yet. A name already bound to a
// different kind returns ok=false.
func (r *Registry) GetOrCreate(name, kind string) (c container.Container, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, found := r.containers[name]; found {
		return existing, existing.Type() == kind
	}

	var c2 container.Container
	switch kind {
	case "list":
		c2 = container.NewList()
	case "map":
		c2 = container.NewMap()
	default:
		return nil, false
	}
	r.containers[name] = c2
	return c2, true
}

// Get looks up an existing container by name.
func (r *Registry) Get(name string) (container.Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[name]
	return c, ok
}
