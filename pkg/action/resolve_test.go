package action

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

func TestResolveLiteralWins(t *testing.T) {
	literal := map[string]any{"type": "integer"}
	ctx := domain.NewContext()
	ctx.Resolvers["ignored"] = func(*domain.Context, *domain.Transition) *schema.Schema {
		return schema.FromMap(map[string]any{"type": "string"})
	}

	s := Resolve(ctx, nil, domain.LiteralSpec(literal), nil, domain.DirectionInput)
	require.NoError(t, s.Validate(42))
	require.Error(t, s.Validate("nope"))
}

func TestResolveNamed(t *testing.T) {
	ctx := domain.NewContext()
	ctx.Resolvers["numbers"] = func(*domain.Context, *domain.Transition) *schema.Schema {
		return schema.FromMap(map[string]any{"type": "integer"})
	}

	s := Resolve(ctx, nil, domain.NamedSpec("numbers"), nil, domain.DirectionOutput)
	require.NoError(t, s.Validate(7))
	require.Error(t, s.Validate("seven"))
}

func TestResolveUnknownNameIsPermissive(t *testing.T) {
	s := Resolve(domain.NewContext(), nil, domain.NamedSpec("missing"), nil, domain.DirectionInput)
	require.True(t, s.IsPermissive())
}

func TestResolveDeclaredFallback(t *testing.T) {
	registry := NewRegistry()
	registry.Register("typed", Declared{
		Action: Simple(func(*domain.Context, domain.Event, domain.Trail, domain.Callback) {}),
		Input:  schema.FromMap(map[string]any{"type": "integer"}),
		Output: schema.FromMap(map[string]any{"type": "string"}),
	})
	ctx := domain.NewContext()
	ctx.Actions = registry
	state := &domain.State{ID: "s", Action: "typed"}

	in := Resolve(ctx, nil, nil, state, domain.DirectionInput)
	require.NoError(t, in.Validate(1))
	require.Error(t, in.Validate("x"))

	out := Resolve(ctx, nil, nil, state, domain.DirectionOutput)
	require.NoError(t, out.Validate("x"))
	require.Error(t, out.Validate(1))
}

func TestResolveNilContextIsPermissive(t *testing.T) {
	require.True(t, Resolve(nil, nil, nil, nil, "").IsPermissive())
	require.True(t, Resolve(nil, nil, domain.NamedSpec("anything"), nil, "").IsPermissive())
}

// Resolution only depends on the tables it is given: a resolver registered
// after introspection changes nothing retroactively, and identical tables
// yield identical schemas at definition time, start time, and runtime.
func TestResolveIsDeterministicPerTables(t *testing.T) {
	spec := domain.NamedSpec("numbers")
	empty := domain.NewContext()

	require.True(t, Resolve(empty, nil, spec, nil, domain.DirectionInput).IsPermissive())

	armed := domain.NewContext()
	armed.Resolvers["numbers"] = func(*domain.Context, *domain.Transition) *schema.Schema {
		return schema.FromMap(map[string]any{"type": "integer"})
	}
	first := Resolve(armed, nil, spec, nil, domain.DirectionInput)
	second := Resolve(armed, nil, spec, nil, domain.DirectionInput)
	require.Equal(t, first.Document(), second.Document())
}

func TestRegistryBindValidatesConfig(t *testing.T) {
	registry := NewRegistry()
	machine := &domain.Machine{ID: "m", States: []domain.State{{ID: "end", Action: domain.ActionTerminal}}}

	strict := Declared{Action: Simple(func(*domain.Context, domain.Event, domain.Trail, domain.Callback) {})}
	registry.Register("strict", configured{strict})

	_, err := Bind(configured{strict}, map[string]any{"unknown": true}, machine, nil, &domain.State{ID: "s", Action: "strict"})
	require.Error(t, err)

	_, err = Bind(configured{strict}, map[string]any{"level": 3}, machine, nil, &domain.State{ID: "s", Action: "strict"})
	require.NoError(t, err)
}

type configured struct {
	Declared
}

func (configured) ConfigSchema() *schema.Schema {
	return schema.FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"level": map[string]any{"type": "integer"},
		},
		"additionalProperties": false,
	})
}

func TestRegistryDefaults(t *testing.T) {
	registry := NewRegistry()
	if _, ok := registry.Lookup(domain.ActionTerminal); !ok {
		t.Fatal("terminal action should be pre-registered")
	}
	if _, ok := registry.Lookup("nope"); ok {
		t.Fatal("unexpected action")
	}
}
