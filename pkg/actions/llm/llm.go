// Package llm implements the LLM-calling action: it assembles the system
// message from prompt fragments plus structural output instructions, appends
// the trail-derived messages, and invokes the provider client asynchronously.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/prompt"
	"github.com/aretw0/loom/pkg/schema"
)

// Name is the registry key states use to bind this action.
const Name = "llm"

// Fallback provider/model when neither the invocation config nor the context
// defaults name one.
const (
	FallbackProvider = "openai"
	FallbackModel    = "gpt-4o-mini"
)

// Config is the per-state action configuration.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// Action calls an LLM provider and hands the parsed reply to the engine.
type Action struct{}

// New returns the action for registration under Name.
func New() Action { return Action{} }

// MessageRole marks events produced by this action as assistant turns in
// derived prompts.
func (Action) MessageRole() domain.Role { return domain.RoleAssistant }

// ConfigSchema declares the accepted configuration shape.
func (Action) ConfigSchema() *schema.Schema {
	return schema.FromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"provider": map[string]any{"type": "string"},
			"model":    map[string]any{"type": "string"},
		},
		"additionalProperties": false,
	})
}

// Make satisfies domain.Action.
func (a Action) Make(config map[string]any, machine *domain.Machine, _ *domain.Transition, state *domain.State) (domain.RuntimeFn, error) {
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return nil, fmt.Errorf("llm action config: %w", err)
	}
	outgoing := machine.TransitionsFrom(state.ID)
	if len(outgoing) == 0 {
		return nil, fmt.Errorf("llm action on state %q: no outgoing transitions to choose from", state.ID)
	}

	return func(ctx *domain.Context, event domain.Event, trail domain.Trail, done domain.Callback) {
		if ctx.Client == nil {
			done(ctx, domain.NewErrorEvent(state.ID, "no LLM client configured"))
			return
		}
		provider, model := Effective(cfg.Provider, cfg.Model, ctx.Defaults)

		var inbound *domain.Transition
		if from, to, ok := event.Discriminator(); ok {
			inbound, _ = machine.FindTransition(from, to)
		}
		system := prompt.SystemMessage(machine, state, inbound, OutputInstructions(ctx, machine, state, outgoing))
		messages := append([]domain.Message{system}, prompt.Derive(ctx, machine, trail)...)

		ctx.Client.Call(context.Background(), provider, model, messages,
			func(content string) {
				candidate, err := ParseReply(content)
				if err != nil {
					// A reply that is not a JSON object cannot name a
					// transition, so there is nothing to validate and feed
					// back; treat it as an upstream failure.
					done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("unparseable model reply: %v", err)))
					return
				}
				done(ctx, candidate)
			},
			func(err error) {
				done(ctx, domain.NewErrorEvent(state.ID, fmt.Sprintf("provider %s/%s: %v", provider, model, err)))
			},
		)
	}, nil
}

// Effective resolves provider and model by precedence: per-invocation
// configuration, then context defaults, then the hard-coded fallback.
func Effective(provider, model string, defaults domain.Defaults) (string, string) {
	if provider == "" {
		provider = defaults.Provider
	}
	if provider == "" {
		provider = FallbackProvider
	}
	if model == "" {
		model = defaults.Model
	}
	if model == "" {
		model = FallbackModel
	}
	return provider, model
}

// OutputInstructions renders the structural part of the system message: the
// declared outgoing transitions with their resolved schemas.
func OutputInstructions(ctx *domain.Context, machine *domain.Machine, state *domain.State, outgoing []*domain.Transition) string {
	var b strings.Builder
	b.WriteString("Reply with a single JSON object. Its \"id\" field must be a two-element array [from, to] ")
	b.WriteString("naming exactly one of the transitions below, and the whole object must satisfy that transition's JSON Schema.\n")
	for _, tr := range outgoing {
		resolved := action.Resolve(ctx, tr, tr.Schema, state, domain.DirectionOutput)
		doc, err := json.Marshal(resolved.WithDefs(schema.MergeDefs(machine.Defs, ctxDefs(ctx))).Document())
		if err != nil {
			doc = []byte("{}")
		}
		fmt.Fprintf(&b, "- [%q, %q]: %s\n", tr.From, tr.To, doc)
	}
	return b.String()
}

func ctxDefs(ctx *domain.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	return ctx.Defs
}

// ParseReply decodes a model reply into a candidate event, tolerating
// markdown code fences around the JSON object.
func ParseReply(content string) (domain.Event, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	var event domain.Event
	if err := json.Unmarshal([]byte(text), &event); err != nil {
		return nil, err
	}
	return event, nil
}
