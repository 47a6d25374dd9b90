package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Reserved identifiers in every machine definition.
const (
	// StateStart is the virtual entry state. It has no definition and no
	// inbound transitions; submitted events carry a discriminator whose
	// from side is "start".
	StateStart = "start"

	// ActionTerminal names the built-in action that completes an instance.
	// A state bound to it is a terminal state and must have no outgoing
	// transitions.
	ActionTerminal = "terminal"
)

// Machine is the full static definition of a state machine.
// It is loaded once and never mutated while instances run.
type Machine struct {
	ID string `json:"id" yaml:"id"`

	// Defs is the machine-level $defs registry shared by transition schemas.
	Defs map[string]any `json:"defs,omitempty" yaml:"defs,omitempty"`

	// Prompts are machine-level prompt fragments prepended to every
	// LLM-bound state's system message.
	Prompts []string `json:"prompts,omitempty" yaml:"prompts,omitempty"`

	States      []State      `json:"states" yaml:"states"`
	Transitions []Transition `json:"transitions" yaml:"transitions"`
}

// State is a named node optionally bound to an action.
type State struct {
	ID     string `json:"id" yaml:"id"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`

	// Config is the action configuration, validated against the action's
	// declared config schema when the instance starts.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	// Prompts are state-level prompt fragments.
	Prompts []string `json:"prompts,omitempty" yaml:"prompts,omitempty"`
}

// Transition is a directed edge uniquely identified by its (from, to) pair.
type Transition struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Schema is the transition's schema specification. Nil means "fall back
	// to the schema declared by the bound action, else permissive".
	Schema *SchemaSpec `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Omit excludes this transition from the trail (and therefore from
	// prompt derivation).
	Omit bool `json:"omit,omitempty" yaml:"omit,omitempty"`

	// Prompts are transition-level prompt fragments.
	Prompts []string `json:"prompts,omitempty" yaml:"prompts,omitempty"`
}

// Key returns the transition's unique (from, to) discriminator.
func (t *Transition) Key() [2]string {
	return [2]string{t.From, t.To}
}

// SchemaSpec is either a literal JSON Schema document or the name of a
// resolver function registered on the context. Exactly one side is set.
type SchemaSpec struct {
	Literal map[string]any
	Name    string
}

// LiteralSpec wraps an inline schema document.
func LiteralSpec(doc map[string]any) *SchemaSpec {
	return &SchemaSpec{Literal: doc}
}

// NamedSpec references a resolver function by name.
func NamedSpec(name string) *SchemaSpec {
	return &SchemaSpec{Name: name}
}

// UnmarshalYAML accepts either a scalar resolver name or an inline mapping.
func (s *SchemaSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&s.Name)
	case yaml.MappingNode:
		return value.Decode(&s.Literal)
	default:
		return fmt.Errorf("schema spec must be a resolver name or an inline schema, got yaml kind %d", value.Kind)
	}
}

// UnmarshalJSON accepts either a string resolver name or an inline object.
func (s *SchemaSpec) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Name)
	}
	return json.Unmarshal(data, &s.Literal)
}

// MarshalJSON renders the spec back to its wire form.
func (s *SchemaSpec) MarshalJSON() ([]byte, error) {
	if s.Name != "" {
		return json.Marshal(s.Name)
	}
	return json.Marshal(s.Literal)
}

// StateByID returns the declared state with the given id.
func (m *Machine) StateByID(id string) (*State, bool) {
	for i := range m.States {
		if m.States[i].ID == id {
			return &m.States[i], true
		}
	}
	return nil, false
}

// TransitionsFrom returns all transitions leaving the given state, in
// declaration order.
func (m *Machine) TransitionsFrom(id string) []*Transition {
	var out []*Transition
	for i := range m.Transitions {
		if m.Transitions[i].From == id {
			out = append(out, &m.Transitions[i])
		}
	}
	return out
}

// TransitionsTo returns all transitions entering the given state, in
// declaration order.
func (m *Machine) TransitionsTo(id string) []*Transition {
	var out []*Transition
	for i := range m.Transitions {
		if m.Transitions[i].To == id {
			out = append(out, &m.Transitions[i])
		}
	}
	return out
}

// FindTransition returns the transition with the exact (from, to) pair.
func (m *Machine) FindTransition(from, to string) (*Transition, bool) {
	for i := range m.Transitions {
		if m.Transitions[i].From == from && m.Transitions[i].To == to {
			return &m.Transitions[i], true
		}
	}
	return nil, false
}

// TerminalState returns the state bound to the terminal action.
func (m *Machine) TerminalState() (*State, bool) {
	for i := range m.States {
		if m.States[i].Action == ActionTerminal {
			return &m.States[i], true
		}
	}
	return nil, false
}
