package runtime

import (
	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// IOSchemas computes a machine's entry and exit schemas without creating any
// queues: the input schema is the one-of union over every transition leaving
// the virtual start state, the output schema the union over every transition
// entering the terminal state.
//
// ctx may be nil (definition time): unresolved specs fall back to the
// permissive schema exactly as they would at runtime with empty tables.
func IOSchemas(ctx *domain.Context, machine *domain.Machine) (input, output *schema.Schema) {
	var defs map[string]any
	if ctx != nil {
		defs = schema.MergeDefs(machine.Defs, ctx.Defs)
	} else {
		defs = machine.Defs
	}

	var ins []*schema.Schema
	for _, tr := range machine.TransitionsFrom(domain.StateStart) {
		consumer, _ := machine.StateByID(tr.To)
		ins = append(ins, action.Resolve(ctx, tr, tr.Schema, consumer, domain.DirectionInput).WithDefs(defs))
	}
	input = schema.OneOf(ins...)

	terminal, ok := machine.TerminalState()
	if !ok {
		return input, schema.Permissive()
	}
	var outs []*schema.Schema
	for _, tr := range machine.TransitionsTo(terminal.ID) {
		producer, _ := machine.StateByID(tr.From)
		outs = append(outs, action.Resolve(ctx, tr, tr.Schema, producer, domain.DirectionOutput).WithDefs(defs))
	}
	output = schema.OneOf(outs...)
	return input, output
}

// RetagForStart re-addresses an event's payload to a machine's start
// transition, used when one machine's terminal output feeds another's input.
// A single start transition is used directly; with several, the first whose
// resolved schema accepts the payload wins.
func RetagForStart(ctx *domain.Context, machine *domain.Machine, event domain.Event) (domain.Event, error) {
	starts := machine.TransitionsFrom(domain.StateStart)
	if len(starts) == 0 {
		return nil, &NoStartTransitionError{Machine: machine.ID}
	}
	payload := event.Payload()
	if len(starts) == 1 {
		return domain.NewEvent(domain.StateStart, starts[0].To, payload), nil
	}

	var defs map[string]any
	if ctx != nil {
		defs = schema.MergeDefs(machine.Defs, ctx.Defs)
	} else {
		defs = machine.Defs
	}
	for _, tr := range starts {
		consumer, _ := machine.StateByID(tr.To)
		candidate := domain.NewEvent(domain.StateStart, tr.To, payload)
		resolved := action.Resolve(ctx, tr, tr.Schema, consumer, domain.DirectionInput).WithDefs(defs)
		if err := resolved.Validate(candidate); err == nil {
			return candidate, nil
		}
	}
	return nil, &NoStartTransitionError{Machine: machine.ID}
}

// NoStartTransitionError reports that a payload matched none of a machine's
// start transitions during composition.
type NoStartTransitionError struct {
	Machine string
}

func (e *NoStartTransitionError) Error() string {
	return "no start transition of machine " + e.Machine + " accepts the forwarded event"
}
