package runtime

import (
	"fmt"

	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// callbackResult is one interception of an action's completion callback.
type callbackResult struct {
	ctx       *domain.Context
	candidate domain.Event
}

// loop is the control loop for one state. It drains the state's inbound
// queue until Stop closes it.
func (i *Instance) loop(st *domain.State) {
	defer i.wg.Done()
	for event := range i.queues[st.ID] {
		switch {
		case st.ID == i.terminal:
			i.complete(event)
		case i.bound[st.ID] == nil:
			i.passThrough(st, event)
		default:
			i.runStep(st, event)
		}
	}
}

// passThrough forwards an event through an unbound state: it is routed by
// its own discriminator onto the matching outbound queue, validated against
// that transition's schema. An event addressed to an undeclared transition
// bails out; so does a validation failure, since there is no producer to
// feed the error back to.
func (i *Instance) passThrough(st *domain.State, event domain.Event) {
	from, to, ok := event.Discriminator()
	if !ok || from != st.ID {
		i.bailout(st.ID, fmt.Sprintf("pass-through state %q cannot route %s", st.ID, event))
		return
	}
	tr, found := i.machine.FindTransition(from, to)
	if !found {
		i.bailout(st.ID, fmt.Sprintf("%s matches no transition out of %q", event, st.ID))
		return
	}

	ctx := i.Context()
	consumer, _ := i.machine.StateByID(to)
	resolved := i.effectiveSchema(ctx, tr, consumer, domain.DirectionInput)
	if err := resolved.Validate(event); err != nil {
		i.bailout(st.ID, err.Error())
		return
	}

	i.record(tr, event)
	i.send(to, event)
}

// runStep drives the bound action for one inbound event: invoke, intercept
// the callback, validate the candidate, retry with feedback on failure,
// advance on success, bail out on fatal conditions.
func (i *Instance) runStep(st *domain.State, event domain.Event) {
	rf := i.bound[st.ID]
	results := make(chan callbackResult, 8)

	attempts := 0
	invoke := func() {
		ctx := i.Context()
		trail := i.Trail()
		defer func() {
			if r := recover(); r != nil {
				// An internal fault must not hang the caller's await:
				// it terminates the instance through the fatal path.
				i.logger.Error("action panic", "state", st.ID, "panic", r)
				i.bailout(st.ID, fmt.Sprintf("action panic in state %q: %v", st.ID, r))
			}
		}()
		rf(ctx, event, trail, func(cbCtx *domain.Context, candidate domain.Event) {
			select {
			case results <- callbackResult{ctx: cbCtx, candidate: candidate}:
			case <-i.stopCh:
			}
		})
	}

	invoke()
	for {
		select {
		case <-i.stopCh:
			return
		case res := <-results:
			if res.ctx != nil {
				i.setContext(res.ctx)
			}
			candidate := res.candidate

			if candidate.IsError() {
				i.bailout(st.ID, candidate[domain.ErrorDetailField])
				return
			}

			from, to, ok := candidate.Discriminator()
			if !ok || from != st.ID {
				// An undeclared or foreign transition id means the action
				// itself is broken; this is not a recoverable validation
				// failure.
				i.bailout(st.ID, fmt.Sprintf("state %q produced %s outside its declared transitions", st.ID, candidate))
				return
			}
			tr, found := i.machine.FindTransition(from, to)
			if !found {
				i.bailout(st.ID, fmt.Sprintf("state %q produced %s outside its declared transitions", st.ID, candidate))
				return
			}

			ctx := i.Context()
			resolved := i.effectiveSchema(ctx, tr, st, domain.DirectionOutput)
			if err := resolved.Validate(candidate); err != nil {
				attempts++
				i.recordFailure(st.ID, candidate, err.Error(), attempts)
				if max := ctx.Retry.MaxAttempts; max > 0 && attempts >= max {
					i.bailout(st.ID, fmt.Sprintf("retry budget exhausted after %d attempts: %s", attempts, err.Error()))
					return
				}
				// Re-invoke with the failure visible in the trail so the
				// producer can present it as corrective feedback.
				invoke()
				continue
			}

			i.record(tr, candidate)
			i.send(to, candidate)
			return
		}
	}
}

// bailout constructs the fatal signal and delivers it directly to the
// terminal queue, skipping validation. The trail records it so callers can
// distinguish a bail-out from normal completion.
func (i *Instance) bailout(from string, detail any) {
	event := domain.NewErrorEvent(from, detail)

	i.mu.Lock()
	i.trail = append(i.trail, domain.TrailEntry{From: from, To: i.terminal, Event: event})
	ctx := i.ctx
	i.mu.Unlock()

	if ctx.Hooks.OnBailout != nil {
		ctx.Hooks.OnBailout(i.machine.ID, from, detail)
	}
	i.logger.Warn("bail-out", "state", from, "detail", fmt.Sprint(detail))
	i.send(i.terminal, event)
}

// record appends a success entry unless the transition is marked omit.
func (i *Instance) record(tr *domain.Transition, event domain.Event) {
	if tr.Omit {
		return
	}
	entry := domain.TrailEntry{From: tr.From, To: tr.To, Event: event}

	i.mu.Lock()
	i.trail = append(i.trail, entry)
	ctx := i.ctx
	i.mu.Unlock()

	if ctx.Hooks.OnTransition != nil {
		ctx.Hooks.OnTransition(i.machine.ID, entry)
	}
}

func (i *Instance) recordFailure(from string, event domain.Event, detail string, attempt int) {
	entry := domain.TrailEntry{
		From:    from,
		Event:   event,
		Failure: &domain.Failure{Detail: detail, Attempt: attempt},
	}

	i.mu.Lock()
	i.trail = append(i.trail, entry)
	ctx := i.ctx
	i.mu.Unlock()

	if ctx.Hooks.OnFailure != nil {
		ctx.Hooks.OnFailure(i.machine.ID, entry)
	}
}

func (i *Instance) setContext(ctx *domain.Context) {
	i.mu.Lock()
	i.ctx = ctx
	i.mu.Unlock()
}

// effectiveSchema resolves a transition's schema and arms it with the merged
// definition registry: machine-level definitions plus context-supplied ones,
// context overriding.
func (i *Instance) effectiveSchema(ctx *domain.Context, tr *domain.Transition, st *domain.State, dir domain.Direction) *schema.Schema {
	resolved := action.Resolve(ctx, tr, tr.Schema, st, dir)
	return resolved.WithDefs(schema.MergeDefs(i.machine.Defs, ctx.Defs))
}
