// Package fanout implements the concurrent multi-provider action: one LLM
// call per configured target from a single state, with a shared timeout and
// an explicit partial-failure policy.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/loom/pkg/actions/llm"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/prompt"
	"github.com/aretw0/loom/pkg/schema"
)

// Name is the registry key states use to bind this action.
const Name = "fanout"

// Partial-failure policies.
const (
	// OnErrorFail turns any target error or timeout into the fatal error
	// event. The default.
	OnErrorFail = "fail"
	// OnErrorPartial aggregates per-target error records alongside the
	// successes; at least one target must succeed.
	OnErrorPartial = "partial"
)

// Target is one concurrent call.
type Target struct {
	ID       string `mapstructure:"id"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// Config is the per-state action configuration.
type Config struct {
	Targets   []Target `mapstructure:"targets"`
	To        string   `mapstructure:"to"`
	TimeoutMS int      `mapstructure:"timeout_ms"`
	OnError   string   `mapstructure:"on_error"`
}

// Action issues the concurrent calls and aggregates results keyed by target
// identifier.
type Action struct{}

// New returns the action for registration under Name.
func New() Action { return Action{} }

// MessageRole marks fan-out results as assistant turns in derived prompts.
func (Action) MessageRole() domain.Role { return domain.RoleAssistant }

// ConfigSchema declares the accepted configuration shape.
func (Action) ConfigSchema() *schema.Schema {
	return schema.FromMap(map[string]any{
		"type":     "object",
		"required": []any{"targets", "to"},
		"properties": map[string]any{
			"targets": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id"},
					"properties": map[string]any{
						"id":       map[string]any{"type": "string", "minLength": 1},
						"provider": map[string]any{"type": "string"},
						"model":    map[string]any{"type": "string"},
					},
				},
			},
			"to":         map[string]any{"type": "string", "minLength": 1},
			"timeout_ms": map[string]any{"type": "integer", "minimum": 1},
			"on_error":   map[string]any{"enum": []any{OnErrorFail, OnErrorPartial}},
		},
	})
}

type outcome struct {
	id     string
	result any
	err    error
}

// Make satisfies domain.Action.
func (a Action) Make(config map[string]any, machine *domain.Machine, _ *domain.Transition, state *domain.State) (domain.RuntimeFn, error) {
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return nil, fmt.Errorf("fanout action config: %w", err)
	}
	if cfg.OnError == "" {
		cfg.OnError = OnErrorFail
	}
	seen := map[string]bool{}
	for _, t := range cfg.Targets {
		if seen[t.ID] {
			return nil, fmt.Errorf("fanout action on state %q: duplicate target id %q", state.ID, t.ID)
		}
		seen[t.ID] = true
	}
	if _, ok := machine.FindTransition(state.ID, cfg.To); !ok {
		return nil, fmt.Errorf("fanout action on state %q: no transition to %q", state.ID, cfg.To)
	}
	timeout := 60 * time.Second
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}

	return func(ctx *domain.Context, event domain.Event, trail domain.Trail, done domain.Callback) {
		if ctx.Client == nil {
			done(ctx, domain.NewErrorEvent(state.ID, "no LLM client configured"))
			return
		}

		var inbound *domain.Transition
		if from, to, ok := event.Discriminator(); ok {
			inbound, _ = machine.FindTransition(from, to)
		}
		system := prompt.SystemMessage(machine, state, inbound, "")
		messages := append([]domain.Message{system}, prompt.Derive(ctx, machine, trail)...)

		outcomes := make([]outcome, len(cfg.Targets))
		group, gctx := errgroup.WithContext(context.Background())
		for idx, target := range cfg.Targets {
			group.Go(func() error {
				provider, model := llm.Effective(target.Provider, target.Model, ctx.Defaults)
				res := call(gctx, ctx.Client, provider, model, messages, timeout)
				res.id = target.ID
				outcomes[idx] = res
				if res.err != nil && cfg.OnError == OnErrorFail {
					return fmt.Errorf("target %q (%s/%s): %w", target.ID, provider, model, res.err)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			done(ctx, domain.NewErrorEvent(state.ID, err.Error()))
			return
		}

		results := make(map[string]any, len(outcomes))
		succeeded := 0
		for _, o := range outcomes {
			if o.err != nil {
				results[o.id] = map[string]any{"error": o.err.Error()}
				continue
			}
			results[o.id] = o.result
			succeeded++
		}
		if succeeded == 0 {
			done(ctx, domain.NewErrorEvent(state.ID, "all fan-out targets failed"))
			return
		}
		done(ctx, domain.NewEvent(state.ID, cfg.To, map[string]any{"results": results}))
	}, nil
}

// call adapts the callback client contract to a synchronous wait bounded by
// the shared timeout.
func call(ctx context.Context, client domain.LLMClient, provider, model string, messages []domain.Message, timeout time.Duration) outcome {
	ch := make(chan outcome, 1)
	client.Call(ctx, provider, model, messages,
		func(content string) {
			var parsed any
			if err := json.Unmarshal([]byte(content), &parsed); err != nil {
				parsed = content
			}
			ch <- outcome{result: parsed}
		},
		func(err error) {
			ch <- outcome{err: err}
		},
	)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res
	case <-timer.C:
		return outcome{err: fmt.Errorf("timed out after %s", timeout)}
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}
