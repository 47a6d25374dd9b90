package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is an immutable JSON Schema document with lazy, cached compilation.
type Schema struct {
	doc        map[string]any
	permissive bool

	mu       sync.Mutex
	compiled *jsonschema.Schema
}

// Permissive returns the schema that accepts every value.
// It is the fallback for unresolved specs and never fails validation.
func Permissive() *Schema {
	return &Schema{permissive: true}
}

// FromMap wraps a raw JSON Schema document.
// The map is copied shallowly; callers must not mutate nested values afterwards.
func FromMap(doc map[string]any) *Schema {
	if doc == nil {
		return Permissive()
	}
	copied := make(map[string]any, len(doc))
	for k, v := range doc {
		copied[k] = v
	}
	return &Schema{doc: copied}
}

// IsPermissive reports whether this is the always-valid schema.
func (s *Schema) IsPermissive() bool {
	return s == nil || s.permissive
}

// Document returns the underlying JSON Schema document.
// The permissive schema renders as the boolean schema "true" equivalent: {}.
func (s *Schema) Document() map[string]any {
	if s.IsPermissive() {
		return map[string]any{}
	}
	out := make(map[string]any, len(s.doc))
	for k, v := range s.doc {
		out[k] = v
	}
	return out
}

// WithDefs returns a derived schema whose $defs block is the document's own
// definitions merged with defs. Entries in defs win on name collision.
// The permissive schema is returned unchanged: it validates nothing, so it
// needs no definitions.
func (s *Schema) WithDefs(defs map[string]any) *Schema {
	if s.IsPermissive() || len(defs) == 0 {
		return s
	}
	doc := s.Document()
	merged := map[string]any{}
	if own, ok := doc["$defs"].(map[string]any); ok {
		for k, v := range own {
			merged[k] = v
		}
	}
	for k, v := range defs {
		merged[k] = v
	}
	doc["$defs"] = merged
	return &Schema{doc: doc}
}

// MergeDefs combines two definition registries; override wins on collision.
func MergeDefs(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// OneOf builds the union schema over alternatives, used for machine entry and
// exit introspection. If any alternative is permissive the union collapses to
// the permissive schema.
func OneOf(alternatives ...*Schema) *Schema {
	if len(alternatives) == 0 {
		return Permissive()
	}
	if len(alternatives) == 1 {
		return alternatives[0]
	}
	docs := make([]any, 0, len(alternatives))
	for _, alt := range alternatives {
		if alt.IsPermissive() {
			return Permissive()
		}
		docs = append(docs, alt.Document())
	}
	return FromMap(map[string]any{"oneOf": docs})
}

// Validate checks value against the schema.
// The value is normalized through a JSON round trip first, so events built in
// Go code (with int fields, typed slices, etc.) validate the same as events
// decoded from the wire.
func (s *Schema) Validate(value any) error {
	if s.IsPermissive() {
		return nil
	}
	compiled, err := s.compile()
	if err != nil {
		return fmt.Errorf("schema compile: %w", err)
	}
	normalized, err := normalize(value)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if err := compiled.Validate(normalized); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled != nil {
		return s.compiled, nil
	}

	// The compiler wants the document as decoded JSON, so round-trip it.
	doc, err := normalize(s.doc)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, err
	}
	s.compiled = compiled
	return compiled, nil
}

func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON-compatible: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}
