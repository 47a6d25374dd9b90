package action

import (
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Terminal is the built-in action completing an instance. The engine
// intercepts events arriving at the terminal state and fulfills the
// completion signal itself, so the runtime function is never invoked.
type Terminal struct{}

// Make satisfies domain.Action.
func (Terminal) Make(_ map[string]any, _ *domain.Machine, _ *domain.Transition, _ *domain.State) (domain.RuntimeFn, error) {
	return func(*domain.Context, domain.Event, domain.Trail, domain.Callback) {}, nil
}

// Fn adapts a factory function into an Action.
type Fn func(config map[string]any, m *domain.Machine, t *domain.Transition, s *domain.State) (domain.RuntimeFn, error)

// Make satisfies domain.Action.
func (f Fn) Make(config map[string]any, m *domain.Machine, t *domain.Transition, s *domain.State) (domain.RuntimeFn, error) {
	return f(config, m, t, s)
}

// Simple wraps a runtime function into an Action that ignores configuration.
func Simple(fn domain.RuntimeFn) domain.Action {
	return Fn(func(map[string]any, *domain.Machine, *domain.Transition, *domain.State) (domain.RuntimeFn, error) {
		return fn, nil
	})
}

// Declared decorates an action with declared input/output schemas, consumed
// by Resolve as the fallback for unspecified transitions.
type Declared struct {
	Action domain.Action
	Input  *schema.Schema
	Output *schema.Schema
}

// Make satisfies domain.Action by delegating to the wrapped action.
func (d Declared) Make(config map[string]any, m *domain.Machine, t *domain.Transition, s *domain.State) (domain.RuntimeFn, error) {
	return d.Action.Make(config, m, t, s)
}

// DeclaredInputSchema satisfies domain.SchemaDeclarer.
func (d Declared) DeclaredInputSchema() *schema.Schema { return d.Input }

// DeclaredOutputSchema satisfies domain.SchemaDeclarer.
func (d Declared) DeclaredOutputSchema() *schema.Schema { return d.Output }
