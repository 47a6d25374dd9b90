package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/loom/pkg/action"
	"github.com/aretw0/loom/pkg/domain"
)

// defaultQueueSize bounds each state's inbound queue. Within one instance
// only one event is in flight at a time, so the buffer only has to absorb
// the hand-off between loops.
const defaultQueueSize = 16

// Options tune a running instance.
type Options struct {
	Logger    *slog.Logger
	QueueSize int
}

// Result is the value the single-fire completion signal carries: the final
// shared context, the full trail, and the event that reached the terminal
// state. A fatal bail-out is still a completion; inspect the trail's last
// entry for the error discriminator.
type Result struct {
	Context *domain.Context
	Trail   domain.Trail
	Event   domain.Event
}

// Instance is one running machine: its queues, its trail, and exactly one
// completion signal.
type Instance struct {
	id       string
	machine  *domain.Machine
	logger   *slog.Logger
	terminal string

	queues map[string]chan domain.Event
	bound  map[string]domain.RuntimeFn

	mu      sync.Mutex
	ctx     *domain.Context
	trail   domain.Trail
	stopped bool

	stopCh chan struct{}
	done   chan struct{}
	result *Result

	completeOnce sync.Once
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// Start validates the machine, binds every state's action (config failures
// are fatal here), wires the queues, and launches one control loop per state.
func Start(ctx *domain.Context, machine *domain.Machine, opts Options) (*Instance, error) {
	if ctx == nil {
		ctx = domain.NewContext()
	}
	if err := machine.Validate(); err != nil {
		return nil, err
	}
	terminal, _ := machine.TerminalState()

	logger := opts.Logger
	if logger == nil {
		logger = ctx.Log()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	inst := &Instance{
		id:       uuid.NewString(),
		machine:  machine,
		logger:   logger.With("machine", machine.ID),
		terminal: terminal.ID,
		queues:   make(map[string]chan domain.Event, len(machine.States)),
		bound:    make(map[string]domain.RuntimeFn, len(machine.States)),
		ctx:      ctx,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	for i := range machine.States {
		st := &machine.States[i]
		if st.Action != "" && st.Action != domain.ActionTerminal {
			if ctx.Actions == nil {
				return nil, fmt.Errorf("state %q needs action %q: %w", st.ID, st.Action, domain.ErrUnknownAction)
			}
			act, ok := ctx.Actions.Lookup(st.Action)
			if !ok {
				return nil, fmt.Errorf("state %q needs action %q: %w", st.ID, st.Action, domain.ErrUnknownAction)
			}
			rf, err := action.Bind(act, st.Config, machine, nil, st)
			if err != nil {
				return nil, err
			}
			inst.bound[st.ID] = rf
		}
		inst.queues[st.ID] = make(chan domain.Event, size)
	}

	for i := range machine.States {
		st := &machine.States[i]
		inst.wg.Add(1)
		go inst.loop(st)
	}

	inst.logger.Debug("instance started", "run", inst.id)
	return inst, nil
}

// ID returns the unique run identifier.
func (i *Instance) ID() string { return i.id }

// Machine returns the immutable definition this instance runs.
func (i *Instance) Machine() *domain.Machine { return i.machine }

// Trail returns a snapshot of the trail observed so far. Later observations
// within the same run are strict extensions of earlier ones.
func (i *Instance) Trail() domain.Trail {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.trail.Clone()
}

// Context returns the current shared context value.
func (i *Instance) Context() *domain.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ctx
}

// Submit routes an event into the machine through the virtual start state.
// The event must carry a (start, X) discriminator matching a declared
// transition; it is validated against that transition's resolved input
// schema before it enters the machine.
func (i *Instance) Submit(event domain.Event) error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return domain.ErrStopped
	}
	ctx := i.ctx
	i.mu.Unlock()

	from, to, ok := event.Discriminator()
	if !ok || from != domain.StateStart {
		return fmt.Errorf("submitted %s does not leave %q", event, domain.StateStart)
	}
	tr, found := i.machine.FindTransition(from, to)
	if !found {
		return fmt.Errorf("submitted %s matches no declared transition", event)
	}

	consumer, _ := i.machine.StateByID(to)
	resolved := i.effectiveSchema(ctx, tr, consumer, domain.DirectionInput)
	if err := resolved.Validate(event); err != nil {
		return fmt.Errorf("submitted %s rejected: %w", event, err)
	}

	i.record(tr, event)
	if !i.send(to, event) {
		return domain.ErrStopped
	}
	return nil
}

// Await blocks until the completion signal fires or the timeout elapses.
// The signal is single-fire but never consumed destructively: every waiter
// observes the same result.
func (i *Instance) Await(timeout time.Duration) (*Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-i.done:
		return i.result, nil
	case <-timer.C:
		return nil, domain.ErrAwaitTimeout
	}
}

// Done exposes the completion signal for composition.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Result returns the completion value, or nil before the signal fires.
func (i *Instance) Result() *Result {
	select {
	case <-i.done:
		return i.result
	default:
		return nil
	}
}

// Stop runs registered cleanup hooks and closes every queue, causing every
// control loop to observe end-of-input and terminate. Idempotent; safe to
// call on an instance that never completed. In-flight external calls are not
// interrupted, but no new step starts once they return.
func (i *Instance) Stop() {
	i.stopOnce.Do(func() {
		i.mu.Lock()
		i.stopped = true
		ctx := i.ctx
		close(i.stopCh)
		for _, q := range i.queues {
			close(q)
		}
		i.mu.Unlock()

		ctx.RunCleanup()
		i.logger.Debug("instance stopped", "run", i.id)
	})
}

// send enqueues onto a state's inbound queue. It reports false once the
// instance is stopped. Holding the lock across the send keeps it ordered
// against Stop's close; the buffer absorbs it without blocking.
func (i *Instance) send(stateID string, event domain.Event) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stopped {
		return false
	}
	select {
	case i.queues[stateID] <- event:
		return true
	default:
		// Single-token flow cannot fill the buffer; if it ever happens the
		// event is dropped rather than deadlocking under the lock.
		i.logger.Error("inbound queue full, dropping event", "state", stateID, "event", event.String())
		return false
	}
}

func (i *Instance) complete(event domain.Event) {
	i.completeOnce.Do(func() {
		i.mu.Lock()
		ctx := i.ctx
		trail := i.trail.Clone()
		i.mu.Unlock()

		i.result = &Result{Context: ctx, Trail: trail, Event: event}
		close(i.done)

		if ctx.Hooks.OnComplete != nil {
			ctx.Hooks.OnComplete(i.machine.ID, trail)
		}
		i.logger.Debug("instance completed", "run", i.id, "event", event.String())
	})
}
