package action

import (
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Resolve turns a transition's schema specification into a concrete schema.
//
// Precedence: an explicit literal schema wins unconditionally; a named spec
// is looked up in the context's resolver table; an absent spec falls back to
// the schema declared by the action bound to state for the given direction;
// everything else resolves to the permissive schema.
//
// Resolve is called at three points in a machine's life: definition time
// (ctx is nil, tables are empty, always permissive unless literal), instance
// start, and per-step runtime. Given the same tables it always produces the
// same result, so introspection performed before starting matches what is
// enforced while running.
func Resolve(ctx *domain.Context, transition *domain.Transition, spec *domain.SchemaSpec, state *domain.State, direction domain.Direction) *schema.Schema {
	if spec != nil && spec.Literal != nil {
		return schema.FromMap(spec.Literal)
	}

	if spec != nil && spec.Name != "" {
		if ctx != nil {
			if fn, ok := ctx.Resolvers[spec.Name]; ok {
				return fn(ctx, transition)
			}
			ctx.Log().Warn("schema resolver not registered, falling back to permissive", "resolver", spec.Name)
		}
		return schema.Permissive()
	}

	if state != nil && direction != "" && ctx != nil && ctx.Actions != nil {
		if a, ok := ctx.Actions.Lookup(state.Action); ok {
			if d, ok := a.(domain.SchemaDeclarer); ok {
				var s *schema.Schema
				switch direction {
				case domain.DirectionInput:
					s = d.DeclaredInputSchema()
				case domain.DirectionOutput:
					s = d.DeclaredOutputSchema()
				}
				if s != nil {
					return s
				}
			}
		}
	}

	return schema.Permissive()
}
