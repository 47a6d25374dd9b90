// Package action binds states to pluggable units of work and resolves
// transition schema specifications.
//
// Actions are registered by name at process startup; new actions are added by
// registration, never by modifying the engine. The registry is resolved once
// at instance start and cached on the shared context.
package action

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
)

// Registry manages the available actions. It implements domain.ActionRegistry.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]domain.Action
}

// NewRegistry creates a registry pre-populated with the built-in terminal
// action.
func NewRegistry() *Registry {
	r := &Registry{actions: make(map[string]domain.Action)}
	r.Register(domain.ActionTerminal, Terminal{})
	return r
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(name string, a domain.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = a
}

// Lookup resolves an action by name.
func (r *Registry) Lookup(name string) (domain.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind validates the configuration against the action's declared config
// schema (when it declares one) and calls the factory. A rejected config is
// fatal at instance start; it never becomes a runtime retry.
func Bind(a domain.Action, config map[string]any, m *domain.Machine, t *domain.Transition, s *domain.State) (domain.RuntimeFn, error) {
	if d, ok := a.(domain.ConfigDeclarer); ok {
		cfg := config
		if cfg == nil {
			cfg = map[string]any{}
		}
		if err := d.ConfigSchema().Validate(cfg); err != nil {
			return nil, fmt.Errorf("state %q: action config rejected: %w", s.ID, err)
		}
	}
	return a.Make(config, m, t, s)
}
