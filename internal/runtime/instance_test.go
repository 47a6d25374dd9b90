package runtime

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
)

const testTimeout = 5 * time.Second

func intSchema() *domain.SchemaSpec {
	return domain.LiteralSpec(map[string]any{
		"type":     "object",
		"required": []any{"value"},
		"properties": map[string]any{
			"value": map[string]any{"type": "integer"},
		},
	})
}

// doublerMachine is the canonical three-state flow: start -> process -> end,
// both hops constrained to an integer "value" payload.
func doublerMachine() *domain.Machine {
	return &domain.Machine{
		ID: "doubler",
		States: []domain.State{
			{ID: "process", Action: "double"},
			{ID: "end", Action: domain.ActionTerminal},
		},
		Transitions: []domain.Transition{
			{From: domain.StateStart, To: "process", Schema: intSchema()},
			{From: "process", To: "end", Schema: intSchema()},
		},
	}
}

func contextWith(t *testing.T, actions map[string]domain.RuntimeFn) *domain.Context {
	t.Helper()
	registry := action.NewRegistry()
	for name, fn := range actions {
		registry.Register(name, action.Simple(fn))
	}
	ctx := domain.NewContext()
	ctx.Actions = registry
	return ctx
}

func doubleFn(ctx *domain.Context, event domain.Event, _ domain.Trail, done domain.Callback) {
	value := event["value"].(int)
	done(ctx, domain.NewEvent("process", "end", map[string]any{"value": value * 2}))
}

func TestRunToCompletion(t *testing.T) {
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": doubleFn})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 21})))

	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.False(t, res.Event.IsError())

	from, to, ok := res.Event.Discriminator()
	require.True(t, ok)
	require.Equal(t, "process", from)
	require.Equal(t, "end", to)
	require.Equal(t, 42, res.Event["value"])

	require.Len(t, res.Trail, 2)
	require.Equal(t, "start", res.Trail[0].From)
	require.Equal(t, "process", res.Trail[0].To)
	require.Equal(t, "process", res.Trail[1].From)
	require.Equal(t, "end", res.Trail[1].To)
}

func TestStartRejectsUnknownAction(t *testing.T) {
	ctx := contextWith(t, nil)
	_, err := Start(ctx, doublerMachine(), Options{})
	require.ErrorIs(t, err, domain.ErrUnknownAction)
}

func TestSubmitRejections(t *testing.T) {
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": doubleFn})
	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	// Not leaving start.
	err = inst.Submit(domain.NewEvent("process", "end", map[string]any{"value": 1}))
	require.Error(t, err)

	// No such transition.
	err = inst.Submit(domain.NewEvent("start", "end", map[string]any{"value": 1}))
	require.Error(t, err)

	// Schema violation.
	err = inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": "nope"}))
	require.Error(t, err)

	// A rejected submit leaves no trace.
	require.Empty(t, inst.Trail())
}

func TestRetryFeedbackConverges(t *testing.T) {
	attempt := 0
	flaky := func(ctx *domain.Context, event domain.Event, trail domain.Trail, done domain.Callback) {
		attempt++
		if attempt == 1 {
			done(ctx, domain.NewEvent("process", "end", map[string]any{"value": "not an integer"}))
			return
		}
		// The retry sees its own rejection in the trail.
		if last, ok := trail.Last(); !ok || !last.Failed() {
			done(ctx, domain.NewErrorEvent("process", "expected failure feedback in trail"))
			return
		}
		done(ctx, domain.NewEvent("process", "end", map[string]any{"value": 42}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": flaky})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 21})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)

	require.False(t, res.Event.IsError())
	require.Equal(t, 42, res.Event["value"])

	// start->process, one failure, process->end.
	require.Len(t, res.Trail, 3)
	require.True(t, res.Trail[1].Failed())
	require.Equal(t, 1, res.Trail[1].Failure.Attempt)
	require.False(t, res.Trail[2].Failed())
}

func TestRetryBudgetExhaustionBailsOut(t *testing.T) {
	broken := func(ctx *domain.Context, _ domain.Event, _ domain.Trail, done domain.Callback) {
		done(ctx, domain.NewEvent("process", "end", map[string]any{"value": "never valid"}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": broken})
	ctx.Retry.MaxAttempts = 3

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)

	require.True(t, res.Event.IsError())

	failures := 0
	for _, entry := range res.Trail {
		if entry.Failed() {
			failures++
		}
	}
	require.Equal(t, 3, failures)
}

func TestForeignDiscriminatorBailsOut(t *testing.T) {
	rogue := func(ctx *domain.Context, _ domain.Event, _ domain.Trail, done domain.Callback) {
		done(ctx, domain.NewEvent("somewhere", "else", map[string]any{"value": 1}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": rogue})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.True(t, res.Event.IsError())

	last, ok := res.Trail.Last()
	require.True(t, ok)
	require.Equal(t, "process", last.From)
	require.Equal(t, "end", last.To)
	require.True(t, last.Event.IsError())
}

func TestActionErrorEventBailsOut(t *testing.T) {
	failing := func(ctx *domain.Context, _ domain.Event, _ domain.Trail, done domain.Callback) {
		done(ctx, domain.NewErrorEvent("process", "provider unreachable"))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": failing})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.True(t, res.Event.IsError())
	require.Equal(t, "provider unreachable", res.Event[domain.ErrorDetailField])
}

func TestActionPanicBailsOut(t *testing.T) {
	panicky := func(*domain.Context, domain.Event, domain.Trail, domain.Callback) {
		panic("boom")
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": panicky})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.True(t, res.Event.IsError())
}

func TestOmittedTransitionLeavesNoTrailEntry(t *testing.T) {
	m := doublerMachine()
	m.Transitions[0].Omit = true
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": doubleFn})

	inst, err := Start(ctx, m, Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 21})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)

	require.Len(t, res.Trail, 1)
	require.Equal(t, "process", res.Trail[0].From)
}

func TestPassThroughRouting(t *testing.T) {
	// A state without an action forwards events by their own discriminator.
	m := &domain.Machine{
		ID: "relay",
		States: []domain.State{
			{ID: "hop"},
			{ID: "end", Action: domain.ActionTerminal},
		},
		Transitions: []domain.Transition{
			{From: domain.StateStart, To: "hop"},
			{From: "hop", To: "end"},
		},
	}
	ctx := contextWith(t, nil)

	inst, err := Start(ctx, m, Options{})
	require.NoError(t, err)
	defer inst.Stop()

	// The submitted event is addressed start->hop; at hop it cannot route
	// itself further (its from side is "start", not "hop"), which is a fatal
	// wiring fault.
	require.NoError(t, inst.Submit(domain.NewEvent("start", "hop", map[string]any{"x": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.True(t, res.Event.IsError())
}

func TestTrailSnapshotsAreStrictExtensions(t *testing.T) {
	release := make(chan struct{})
	gated := func(ctx *domain.Context, event domain.Event, _ domain.Trail, done domain.Callback) {
		<-release
		doubleFn(ctx, event, nil, done)
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": gated})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 21})))
	mid := inst.Trail()
	require.Len(t, mid, 1)

	close(release)
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)

	require.Len(t, res.Trail, 2)
	require.Equal(t, mid[0].From, res.Trail[0].From)
	require.Equal(t, mid[0].To, res.Trail[0].To)
}

func TestAwaitTimeout(t *testing.T) {
	stuck := func(*domain.Context, domain.Event, domain.Trail, domain.Callback) {}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": stuck})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	_, err = inst.Await(50 * time.Millisecond)
	require.ErrorIs(t, err, domain.ErrAwaitTimeout)
}

func TestAwaitAfterCompletionReturnsSameResult(t *testing.T) {
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": doubleFn})
	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 21})))
	first, err := inst.Await(testTimeout)
	require.NoError(t, err)
	second, err := inst.Await(time.Millisecond)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Same(t, first, inst.Result())
}

func TestStopIsIdempotent(t *testing.T) {
	cleanups := 0
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": doubleFn})
	ctx.OnCleanup(func() { cleanups++ })

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)

	inst.Stop()
	inst.Stop()
	require.Equal(t, 1, cleanups)

	require.ErrorIs(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})), domain.ErrStopped)
}

func TestHooksFire(t *testing.T) {
	var transitions, failures, completions int
	attempt := 0
	flaky := func(ctx *domain.Context, _ domain.Event, _ domain.Trail, done domain.Callback) {
		attempt++
		if attempt == 1 {
			done(ctx, domain.NewEvent("process", "end", map[string]any{"value": "bad"}))
			return
		}
		done(ctx, domain.NewEvent("process", "end", map[string]any{"value": 2}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": flaky})
	ctx.Hooks = domain.Hooks{
		OnTransition: func(string, domain.TrailEntry) { transitions++ },
		OnFailure:    func(string, domain.TrailEntry) { failures++ },
		OnComplete:   func(string, domain.Trail) { completions++ },
	}

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	_, err = inst.Await(testTimeout)
	require.NoError(t, err)

	require.Equal(t, 2, transitions)
	require.Equal(t, 1, failures)
	require.Equal(t, 1, completions)
}

func TestContextReplacementPropagates(t *testing.T) {
	stamping := func(ctx *domain.Context, event domain.Event, _ domain.Trail, done domain.Callback) {
		next := ctx.Clone()
		next.Values["stamp"] = "seen"
		done(next, domain.NewEvent("process", "end", map[string]any{"value": event["value"]}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": stamping})

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.Equal(t, "seen", res.Context.Values["stamp"])
}

func TestUnboundedRetriesWhenBudgetIsZero(t *testing.T) {
	attempt := 0
	eventually := func(ctx *domain.Context, _ domain.Event, _ domain.Trail, done domain.Callback) {
		attempt++
		if attempt < 12 {
			done(ctx, domain.NewEvent("process", "end", map[string]any{"value": fmt.Sprint(attempt)}))
			return
		}
		done(ctx, domain.NewEvent("process", "end", map[string]any{"value": attempt}))
	}
	ctx := contextWith(t, map[string]domain.RuntimeFn{"double": eventually})
	ctx.Retry.MaxAttempts = 0

	inst, err := Start(ctx, doublerMachine(), Options{})
	require.NoError(t, err)
	defer inst.Stop()

	require.NoError(t, inst.Submit(domain.NewEvent("start", "process", map[string]any{"value": 1})))
	res, err := inst.Await(testTimeout)
	require.NoError(t, err)
	require.False(t, res.Event.IsError())
	require.Equal(t, 12, res.Event["value"])
}

func TestStartValidatesMachine(t *testing.T) {
	bad := &domain.Machine{ID: "bad", States: []domain.State{{ID: "only"}}}
	_, err := Start(domain.NewContext(), bad, Options{})
	if err == nil || errors.Is(err, domain.ErrUnknownAction) {
		t.Fatalf("Start() = %v, want validation error", err)
	}
}
