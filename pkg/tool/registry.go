package tool

import (
	"fmt"
	"sync"
)

// Registry holds capabilities by name and remembers registration order,
// which is the order they appear in the catalog.
type Registry struct {
	tools map[string]*Capability
	order []string
	mu    sync.RWMutex
}

func NewRegistry(caps ...*Capability) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]*Capability),
	}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(c *Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.tools[name]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns the capabilities in registration order.
func (r *Registry) List() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]*Capability, len(r.order))
	for i, name := range r.order {
		caps[i] = r.tools[name]
	}
	return caps
}

// Prompts returns the catalog entries in registration order.
func (r *Registry) Prompts() []string {
	caps := r.List()
	prompts := make([]string, len(caps))
	for i, c := range caps {
		prompts[i] = c.Prompt()
	}
	return prompts
}
