package domain

import "github.com/aretw0/loom/pkg/schema"

// RuntimeFn is the runtime form of an action, produced by its factory once
// per bound state at instance start. It may suspend (LLM calls, sub-machines)
// and reports candidates through done; the engine intercepts and validates
// every candidate before advancing.
type RuntimeFn func(ctx *Context, event Event, trail Trail, done Callback)

// Callback delivers a candidate next event together with the (possibly
// replaced) shared context. It may be invoked multiple times: once per retry
// round when the engine feeds validation failures back to the producer.
type Callback func(ctx *Context, candidate Event)

// Action is a pluggable unit of work bound to a state by name.
//
// Make is called once per (config, machine, transition, state) when an
// instance starts. A config rejected here is fatal and surfaces at start
// time; it is never masked as a runtime retry.
type Action interface {
	Make(config map[string]any, machine *Machine, transition *Transition, state *State) (RuntimeFn, error)
}

// SchemaDeclarer is optionally implemented by actions that declare their own
// input/output schemas. The resolver consults these as the fallback source of
// truth when a transition carries no schema specification.
type SchemaDeclarer interface {
	DeclaredInputSchema() *schema.Schema
	DeclaredOutputSchema() *schema.Schema
}

// ConfigDeclarer is optionally implemented by actions that declare a schema
// for their own configuration, enforced by the factory caller at start time.
type ConfigDeclarer interface {
	ConfigSchema() *schema.Schema
}

// RoleDeclarer is optionally implemented by actions whose produced events
// should render with a non-default role in derived prompts. States bound to
// actions without this interface render as "user".
type RoleDeclarer interface {
	MessageRole() Role
}

// ActionRegistry resolves action names to registered actions.
type ActionRegistry interface {
	Lookup(name string) (Action, bool)
}

// ResolverFunc resolves a named schema specification for a transition.
type ResolverFunc func(ctx *Context, transition *Transition) *schema.Schema

// Direction selects which of an action's declared schemas applies.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)
