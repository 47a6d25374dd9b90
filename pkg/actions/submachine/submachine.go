// Package submachine implements nested machine invocation: a parent action
// that runs a child machine synchronously to completion and folds the
// child's trail into the parent-side candidate event.
package submachine

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/loom/internal/runtime"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Name is the registry key states use to bind this action.
const Name = "fsm"

// Trail-inclusion modes.
const (
	TrailFull    = "full"
	TrailSummary = "summary"
)

// Config is the per-state action configuration.
type Config struct {
	// Machine identifies the child, resolved through the context's loader.
	Machine string `mapstructure:"machine"`
	// To is the success destination state in the parent machine.
	To string `mapstructure:"to"`
	// Trail selects full or summarized child-trail embedding.
	Trail string `mapstructure:"trail"`
}

// Action runs a child machine from within a parent step.
type Action struct{}

// New returns the action for registration under Name.
func New() Action { return Action{} }

// ConfigSchema declares the accepted configuration shape.
func (Action) ConfigSchema() *schema.Schema {
	return schema.FromMap(map[string]any{
		"type":     "object",
		"required": []any{"machine", "to"},
		"properties": map[string]any{
			"machine": map[string]any{"type": "string", "minLength": 1},
			"to":      map[string]any{"type": "string", "minLength": 1},
			"trail":   map[string]any{"enum": []any{TrailFull, TrailSummary}},
		},
	})
}

// Make satisfies domain.Action.
func (a Action) Make(config map[string]any, machine *domain.Machine, _ *domain.Transition, state *domain.State) (domain.RuntimeFn, error) {
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return nil, fmt.Errorf("fsm action config: %w", err)
	}
	if cfg.Trail == "" {
		cfg.Trail = TrailSummary
	}
	if _, ok := machine.FindTransition(state.ID, cfg.To); !ok {
		return nil, fmt.Errorf("fsm action on state %q: no transition to %q", state.ID, cfg.To)
	}

	return func(ctx *domain.Context, event domain.Event, trail domain.Trail, done domain.Callback) {
		if ctx.Loader == nil {
			done(ctx, domain.NewErrorEvent(state.ID, "no machine loader configured"))
			return
		}
		child, err := ctx.Loader.LoadMachine(context.Background(), cfg.Machine)
		if err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("loading machine %q: %v", cfg.Machine, err)))
			return
		}

		inst, err := runtime.Start(ctx.Fork(), child, runtime.Options{Logger: ctx.Log()})
		if err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("starting machine %q: %v", cfg.Machine, err)))
			return
		}
		defer inst.Stop()

		submit, err := runtime.RetagForStart(ctx, child, event)
		if err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, err.Error()))
			return
		}
		if err := inst.Submit(submit); err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, err.Error()))
			return
		}

		// Synchronous from the parent's perspective: the parent step
		// suspends until the child completes or the parent is stopped.
		<-inst.Done()
		res := inst.Result()

		if res.Event.IsError() {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("machine %q failed: %v", cfg.Machine, res.Event[domain.ErrorDetailField])))
			return
		}

		payload := map[string]any{
			"machine": cfg.Machine,
			"result":  res.Event.Payload(),
		}
		switch cfg.Trail {
		case TrailFull:
			payload["trail"] = res.Trail
		default:
			payload["trail"] = Summarize(res.Trail)
		}
		done(ctx, domain.NewEvent(state.ID, cfg.To, payload))
	}, nil
}

// Summarize condenses a child trail to its taken path and failure count.
func Summarize(trail domain.Trail) map[string]any {
	var steps []string
	failures := 0
	for _, entry := range trail {
		if entry.Failed() {
			failures++
			continue
		}
		steps = append(steps, entry.From+"->"+entry.To)
	}
	return map[string]any{
		"steps":    steps,
		"failures": failures,
	}
}
