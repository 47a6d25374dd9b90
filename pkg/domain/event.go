package domain

import "fmt"

// DiscriminatorField is the reserved event field holding the two-element
// [from, to] transition discriminator.
const DiscriminatorField = "id"

// ErrorDiscriminator is the synthetic discriminator value an action uses to
// report an unrecoverable failure. Events carrying it bypass validation and
// travel straight to the terminal queue.
const ErrorDiscriminator = "error"

// ErrorDetailField carries the failure description on an error event.
const ErrorDetailField = "error"

// Event is a JSON-compatible structured document. Every regular event carries
// the [from, to] discriminator under the reserved "id" field; the remaining
// fields are transition-specific payload. Events are values: once validated
// and recorded they are never mutated, so derivations always copy.
type Event map[string]any

// NewEvent builds an event addressed to the (from, to) transition.
// The payload map is copied; the reserved field is overwritten if present.
func NewEvent(from, to string, payload map[string]any) Event {
	ev := make(Event, len(payload)+1)
	for k, v := range payload {
		ev[k] = v
	}
	ev[DiscriminatorField] = []any{from, to}
	return ev
}

// NewErrorEvent builds the fatal bail-out event originating at from.
func NewErrorEvent(from string, detail any) Event {
	return Event{
		DiscriminatorField: ErrorDiscriminator,
		ErrorDetailField:   detail,
		"from":             from,
	}
}

// Discriminator extracts the [from, to] pair. ok is false when the reserved
// field is missing, malformed, or holds the error discriminator.
func (e Event) Discriminator() (from, to string, ok bool) {
	raw, exists := e[DiscriminatorField]
	if !exists {
		return "", "", false
	}
	switch id := raw.(type) {
	case []any:
		if len(id) != 2 {
			return "", "", false
		}
		from, okF := id[0].(string)
		to, okT := id[1].(string)
		if !okF || !okT {
			return "", "", false
		}
		return from, to, true
	case []string:
		if len(id) != 2 {
			return "", "", false
		}
		return id[0], id[1], true
	case [2]string:
		return id[0], id[1], true
	default:
		return "", "", false
	}
}

// IsError reports whether the event carries the synthetic error discriminator.
func (e Event) IsError() bool {
	s, ok := e[DiscriminatorField].(string)
	return ok && s == ErrorDiscriminator
}

// Clone returns a shallow copy of the event.
func (e Event) Clone() Event {
	out := make(Event, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Payload returns the event without its reserved discriminator field.
func (e Event) Payload() map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		if k == DiscriminatorField {
			continue
		}
		out[k] = v
	}
	return out
}

// Retag returns a copy of the event re-addressed to the (from, to) pair.
// Used when composing machines: payload travels, the discriminator changes.
func (e Event) Retag(from, to string) Event {
	out := e.Clone()
	out[DiscriminatorField] = []any{from, to}
	return out
}

// String renders the discriminator for logs and errors.
func (e Event) String() string {
	if e.IsError() {
		return "event[error]"
	}
	if from, to, ok := e.Discriminator(); ok {
		return fmt.Sprintf("event[%s->%s]", from, to)
	}
	return "event[?]"
}
