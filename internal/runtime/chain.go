package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/loom/pkg/domain"
)

// Chain wires N machines so that machine k's terminal output becomes
// machine k+1's start input. It exposes the same start/submit/await/stop
// surface as a single instance.
type Chain struct {
	machines []*domain.Machine
	base     *domain.Context
	opts     Options

	mu        sync.Mutex
	started   bool
	stopped   bool
	instances []*Instance

	done     chan struct{}
	doneOnce sync.Once
	result   *Result
	err      error
}

// NewChain validates the machines (N >= 2) without starting anything.
func NewChain(ctx *domain.Context, machines []*domain.Machine, opts Options) (*Chain, error) {
	if len(machines) < 2 {
		return nil, fmt.Errorf("chain needs at least 2 machines, got %d", len(machines))
	}
	for _, m := range machines {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	if ctx == nil {
		ctx = domain.NewContext()
	}
	return &Chain{
		machines: machines,
		base:     ctx,
		opts:     opts,
		done:     make(chan struct{}),
	}, nil
}

// Start launches every instance and wires the hand-offs. Starting twice is
// an error.
func (c *Chain) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return domain.ErrAlreadyStarted
	}

	instances := make([]*Instance, 0, len(c.machines))
	for _, m := range c.machines {
		inst, err := Start(c.base.Fork(), m, c.opts)
		if err != nil {
			for _, started := range instances {
				started.Stop()
			}
			return err
		}
		instances = append(instances, inst)
	}
	c.instances = instances
	c.started = true

	for k := 0; k < len(instances)-1; k++ {
		go c.forward(instances[k], instances[k+1])
	}
	go func() {
		last := instances[len(instances)-1]
		<-last.Done()
		c.finish(last.Result(), nil)
	}()
	return nil
}

// forward waits for upstream's completion and feeds its terminal output into
// downstream, retagged to downstream's start transition.
func (c *Chain) forward(upstream, downstream *Instance) {
	<-upstream.Done()
	res := upstream.Result()

	if res.Event.IsError() {
		// A bail-out upstream is the chain's outcome; downstream never runs.
		c.finish(res, nil)
		return
	}
	event, err := RetagForStart(res.Context, downstream.Machine(), res.Event)
	if err != nil {
		c.finish(nil, err)
		return
	}
	if err := downstream.Submit(event); err != nil {
		c.finish(nil, fmt.Errorf("chain hand-off into machine %q: %w", downstream.Machine().ID, err))
	}
}

func (c *Chain) finish(result *Result, err error) {
	c.doneOnce.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
	})
}

// Submit feeds an event into the first machine.
func (c *Chain) Submit(event domain.Event) error {
	c.mu.Lock()
	started, stopped := c.started, c.stopped
	var first *Instance
	if started {
		first = c.instances[0]
	}
	c.mu.Unlock()

	if !started {
		return domain.ErrNotStarted
	}
	if stopped {
		return domain.ErrStopped
	}
	return first.Submit(event)
}

// Await blocks until the final machine completes, a hand-off fails, or the
// timeout elapses.
func (c *Chain) Await(timeout time.Duration) (*Result, error) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil, domain.ErrNotStarted
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return c.result, c.err
	case <-timer.C:
		return nil, domain.ErrAwaitTimeout
	}
}

// Stop stops every instance. Idempotent.
func (c *Chain) Stop() {
	c.mu.Lock()
	c.stopped = true
	instances := c.instances
	c.mu.Unlock()
	for _, inst := range instances {
		inst.Stop()
	}
}
