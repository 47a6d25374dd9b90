package loom_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
)

func addOneMachine(id string) *domain.Machine {
	payload := domain.LiteralSpec(map[string]any{
		"type":     "object",
		"required": []any{"value"},
		"properties": map[string]any{
			"value": map[string]any{"type": "integer"},
		},
	})
	return &domain.Machine{
		ID: id,
		States: []domain.State{
			{ID: "inc", Action: "add-one"},
			{ID: "end", Action: domain.ActionTerminal},
		},
		Transitions: []domain.Transition{
			{From: domain.StateStart, To: "inc", Schema: payload},
			{From: "inc", To: "end", Schema: payload},
		},
	}
}

func addOneContext() *domain.Context {
	registry := action.NewRegistry()
	registry.Register("add-one", action.Simple(func(ctx *domain.Context, event domain.Event, _ domain.Trail, done domain.Callback) {
		done(ctx, domain.NewEvent("inc", "end", map[string]any{"value": event["value"].(int) + 1}))
	}))
	ctx := domain.NewContext()
	ctx.Actions = registry
	return ctx
}

func TestRun(t *testing.T) {
	res, err := loom.Run(addOneContext(), addOneMachine("m"),
		domain.NewEvent("start", "inc", map[string]any{"value": 41}),
		5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 42, res.Event["value"])
	require.Len(t, res.Trail, 2)
}

func TestRunPropagatesSubmitErrors(t *testing.T) {
	_, err := loom.Run(addOneContext(), addOneMachine("m"),
		domain.NewEvent("start", "inc", map[string]any{"value": "nope"}),
		5*time.Second)
	require.Error(t, err)
}

func TestChainFacade(t *testing.T) {
	chain, err := loom.NewChain(addOneContext(), []*domain.Machine{
		addOneMachine("first"),
		addOneMachine("second"),
	})
	require.NoError(t, err)

	require.NoError(t, chain.Start())
	defer chain.Stop()

	require.NoError(t, chain.Submit(domain.NewEvent("start", "inc", map[string]any{"value": 40})))
	res, err := chain.Await(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, 42, res.Event["value"])
}

func TestIOSchemasFacade(t *testing.T) {
	input, output := loom.IOSchemas(nil, addOneMachine("m"))
	require.NoError(t, input.Validate(map[string]any{"value": 1}))
	require.Error(t, input.Validate(map[string]any{}))
	require.NoError(t, output.Validate(map[string]any{"value": 2}))
}
