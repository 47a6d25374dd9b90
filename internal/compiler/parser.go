// Package compiler parses machine definition documents into validated
// domain machines.
package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/loom/pkg/domain"
)

// Parser turns YAML machine documents into validated definitions.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes and validates one machine document.
func (p *Parser) Parse(data []byte) (*domain.Machine, error) {
	var machine domain.Machine
	if err := yaml.Unmarshal(data, &machine); err != nil {
		return nil, fmt.Errorf("parsing machine document: %w", err)
	}
	sanitizeMachine(&machine)
	if err := machine.Validate(); err != nil {
		return nil, err
	}
	return &machine, nil
}

// ParseFile reads and parses a machine document from disk.
func (p *Parser) ParseFile(path string) (*domain.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading machine file: %w", err)
	}
	machine, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return machine, nil
}

// sanitizeMachine rewrites YAML's map[any]any values into JSON-compatible
// map[string]any so schema documents and action configs survive the JSON
// round trip validation relies on.
func sanitizeMachine(m *domain.Machine) {
	m.Defs = sanitizeMap(m.Defs)
	for i := range m.States {
		m.States[i].Config = sanitizeMap(m.States[i].Config)
	}
	for i := range m.Transitions {
		if m.Transitions[i].Schema != nil {
			m.Transitions[i].Schema.Literal = sanitizeMap(m.Transitions[i].Schema.Literal)
		}
	}
}

func sanitizeMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sanitizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = sanitizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
