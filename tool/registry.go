package tool

import (
	"fmt"
	"sync"
)

// Registration is what callers register against a tool name.
type Registration struct {
	Name             string
	Description      string
	ParametersSchema string
	SourceTag        string
	Executor         Executor
}

// Registry is the concurrent, unordered tool-name → executor map
// described in spec.md §3 ("Tool registration"). Register is fail-closed
// on duplicate name.
type Registry struct {
	mu  sync.RWMutex
	regs map[string]Registration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Register adds reg under reg.Name. ErrDuplicateTool is returned if the
// name is already registered.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("tool: registration name cannot be empty")
	}
	if reg.Executor == nil {
		return fmt.Errorf("tool: registration %q: executor cannot be nil", reg.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.regs[reg.Name]; exists {
		return fmt.Errorf("tool: %q: %w", reg.Name, ErrDuplicateTool)
	}
	r.regs[reg.Name] = reg
	return nil
}

// Unregister removes name, if present. It is a no-op otherwise.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regs, name)
}

// Lookup returns the registration for name and whether it was found.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[name]
	return reg, ok
}

// Names returns every currently registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.regs))
	for name := range r.regs {
		names = append(names, name)
	}
	return names
}
