// Package prompt derives the role-tagged message sequence handed to
// LLM-bound actions purely from the trail and the static machine definition.
// Nothing is duplicated into the trail itself, so historical trails stay
// interpretable when schemas are edited later; only renaming or removing
// actions breaks old trails, which is handled by retaining old machine and
// action versions.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// Derive renders the trail as an ordered message list.
//
// The producing state's bound action determines the role: entries produced by
// the virtual start state or by any state whose action does not declare the
// assistant role render as "user"; entries produced by assistant-role actions
// (the LLM action) render as "assistant". Failure entries always render as
// "user" carrying the failure detail, so the next invocation sees its own
// mistake as corrective input.
func Derive(ctx *domain.Context, machine *domain.Machine, trail domain.Trail) []domain.Message {
	messages := make([]domain.Message, 0, len(trail))
	for _, entry := range trail {
		if entry.Failed() {
			messages = append(messages, domain.Message{
				Role: domain.RoleUser,
				Content: fmt.Sprintf(
					"Your previous reply was rejected (attempt %d): %s\nReply again, correcting the problem.",
					entry.Failure.Attempt, entry.Failure.Detail,
				),
			})
			continue
		}
		messages = append(messages, domain.Message{
			Role:    roleFor(ctx, machine, entry.From),
			Content: renderEvent(entry.Event),
		})
	}
	return messages
}

func roleFor(ctx *domain.Context, machine *domain.Machine, producer string) domain.Role {
	if producer == domain.StateStart {
		return domain.RoleUser
	}
	st, ok := machine.StateByID(producer)
	if !ok || st.Action == "" || ctx == nil || ctx.Actions == nil {
		return domain.RoleUser
	}
	act, ok := ctx.Actions.Lookup(st.Action)
	if !ok {
		return domain.RoleUser
	}
	if rd, ok := act.(domain.RoleDeclarer); ok {
		return rd.MessageRole()
	}
	return domain.RoleUser
}

func renderEvent(event domain.Event) string {
	data, err := json.Marshal(event)
	if err != nil {
		// Events are JSON-compatible by contract; this only fires on caller
		// bugs and still yields something readable.
		return fmt.Sprintf("%v", map[string]any(event))
	}
	return string(data)
}

// SystemMessage assembles the single system message for an LLM-bound state:
// machine-level, state-level, and transition-level fragments in that order,
// followed by instructions.
func SystemMessage(machine *domain.Machine, state *domain.State, transition *domain.Transition, instructions string) domain.Message {
	var fragments []string
	fragments = append(fragments, machine.Prompts...)
	if state != nil {
		fragments = append(fragments, state.Prompts...)
	}
	if transition != nil {
		fragments = append(fragments, transition.Prompts...)
	}
	if instructions != "" {
		fragments = append(fragments, instructions)
	}
	return domain.Message{Role: domain.RoleSystem, Content: strings.Join(fragments, "\n\n")}
}
