package flow

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry indexes flows by name.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]*Flow)}
}

// Register adds f. Names must be unique.
func (r *Registry) Register(f *Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[f.Name()]; ok {
		return fmt.Errorf("flow %q is already registered", f.Name())
	}
	r.flows[f.Name()] = f
	return nil
}

// Get looks up a flow by name.
func (r *Registry) Get(name string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	return f, ok
}

// List returns all flows ordered by name.
func (r *Registry) List() []*Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *Flow) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}
