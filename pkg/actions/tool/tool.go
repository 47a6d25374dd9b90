// Package tool implements the bridge-backed tool-execution action: a
// configured batch of tool calls sent to a subprocess bridge, with results
// aggregated into the success destination event.
package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/schema"
)

// Name is the registry key states use to bind this action.
const Name = "tool"

// Call is one tool invocation in the batch.
type Call struct {
	Tool string         `mapstructure:"tool"`
	Args map[string]any `mapstructure:"args"`
}

// Config is the per-state action configuration.
type Config struct {
	Calls     []Call `mapstructure:"calls"`
	To        string `mapstructure:"to"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// Action executes tool batches over a subprocess bridge. The bridge is
// dialed lazily on first use, once per bound state per instance, and closed
// by the instance's stop hook.
type Action struct {
	dial ports.BridgeDialer
}

// New creates the action around a bridge dialer.
func New(dial ports.BridgeDialer) Action {
	return Action{dial: dial}
}

// ConfigSchema declares the accepted configuration shape.
func (Action) ConfigSchema() *schema.Schema {
	return schema.FromMap(map[string]any{
		"type":     "object",
		"required": []any{"calls", "to"},
		"properties": map[string]any{
			"calls": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"tool"},
					"properties": map[string]any{
						"tool": map[string]any{"type": "string", "minLength": 1},
						"args": map[string]any{"type": "object"},
					},
				},
			},
			"to":         map[string]any{"type": "string", "minLength": 1},
			"timeout_ms": map[string]any{"type": "integer", "minimum": 1},
		},
	})
}

// Make satisfies domain.Action.
func (a Action) Make(config map[string]any, machine *domain.Machine, _ *domain.Transition, state *domain.State) (domain.RuntimeFn, error) {
	if a.dial == nil {
		return nil, fmt.Errorf("tool action on state %q: no bridge dialer", state.ID)
	}
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return nil, fmt.Errorf("tool action config: %w", err)
	}
	if _, ok := machine.FindTransition(state.ID, cfg.To); !ok {
		return nil, fmt.Errorf("tool action on state %q: no transition to %q", state.ID, cfg.To)
	}
	timeout := 30 * time.Second
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}

	requests := make([]ports.BridgeRequest, len(cfg.Calls))
	for i, call := range cfg.Calls {
		requests[i] = ports.BridgeRequest{Tool: call.Tool, Args: call.Args}
	}

	var (
		once   sync.Once
		bridge ports.Bridge
		dialed error
	)
	acquire := func(ctx *domain.Context) (ports.Bridge, error) {
		once.Do(func() {
			bridge, dialed = a.dial(context.Background())
			if dialed == nil {
				ctx.OnCleanup(func() {
					if err := bridge.Close(); err != nil {
						ctx.Log().Warn("closing bridge", "err", err)
					}
				})
			}
		})
		return bridge, dialed
	}

	return func(ctx *domain.Context, event domain.Event, trail domain.Trail, done domain.Callback) {
		br, err := acquire(ctx)
		if err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("bridge dial: %v", err)))
			return
		}

		// Unsolicited notifications would corrupt the correlated read.
		if err := br.DrainNotifications(context.Background()); err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("bridge drain: %v", err)))
			return
		}

		responses, err := br.SendAndAwait(context.Background(), requests, timeout)
		if err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("bridge round trip: %v", err)))
			return
		}

		results := make([]map[string]any, len(responses))
		for i, resp := range responses {
			entry := map[string]any{"tool": requests[i].Tool}
			if resp.Err != "" {
				entry["error"] = resp.Err
			} else {
				entry["result"] = resp.Result
			}
			results[i] = entry
		}
		done(ctx, domain.NewEvent(state.ID, cfg.To, map[string]any{"results": results}))
	}, nil
}
