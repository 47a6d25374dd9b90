// Package schema wraps JSON Schema documents used as transition contracts.
//
// A Schema is an immutable JSON Schema (draft 2020-12) document. Machines
// declare a registry of named definitions; callers may supply additional
// definitions at start time. The two registries are merged into the document's
// $defs block before compilation, with caller-supplied entries winning on name
// collision.
//
// Compilation is lazy and cached: the first Validate call compiles the
// document, subsequent calls reuse the compiled form. The permissive schema
// accepts every value and never compiles anything.
//
// Basic usage:
//
//	s := schema.FromMap(map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	        "value": map[string]any{"type": "integer"},
//	    },
//	    "required": []any{"value"},
//	})
//
//	if err := s.Validate(map[string]any{"value": 21}); err != nil {
//	    // Handle validation failure
//	}
package schema
