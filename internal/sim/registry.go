package sim

import (
	"fmt"
	"sort"
	"sync"
)

type simInfo struct {
	name     string
	state    StateBuilder
	elements map[string]ElementBuilder
}

// Registry maps simulation types to their state builder and element
// builders. Populate it once at startup; Machines only read it.
type Registry struct {
	mu   sync.RWMutex
	sims map[string]*simInfo
}

func NewRegistry() *Registry {
	return &Registry{sims: make(map[string]*simInfo)}
}

// RegisterState installs the state builder for simType. Registering the
// same name again replaces the builder and keeps its elements.
func (r *Registry) RegisterState(simType string, b StateBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info, ok := r.sims[simType]; ok {
		info.state = b
		return
	}
	r.sims[simType] = &simInfo{
		name:     simType,
		state:    b,
		elements: make(map[string]ElementBuilder),
	}
}

func (r *Registry) RegisterElement(simType, elemType string, b ElementBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.sims[simType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSimType, simType)
	}
	info.elements[elemType] = b
	return nil
}

// lookup returns a snapshot of the builders for simType so a Machine is not
// affected by later registrations.
func (r *Registry) lookup(simType string) (*simInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.sims[simType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSimType, simType)
	}
	snap := &simInfo{
		name:     info.name,
		state:    info.state,
		elements: make(map[string]ElementBuilder, len(info.elements)),
	}
	for k, v := range info.elements {
		snap.elements[k] = v
	}
	return snap, nil
}

func (r *Registry) SimTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sims))
	for name := range r.sims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ElementTypes(simType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.sims[simType]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(info.elements))
	for name := range info.elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
