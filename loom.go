package loom

import (
	"log/slog"
	"time"

	"github.com/aretw0/loom/internal/runtime"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// Version of the loom engine.
const Version = "0.4.0"

// Instance is one running machine: queues, trail, and a single-fire
// completion signal.
type Instance = runtime.Instance

// Result is the completion value: final shared context, full trail, and the
// event that reached the terminal state.
type Result = runtime.Result

// Option configures a starting instance.
type Option func(*runtime.Options)

// WithLogger sets the instance logger. Defaults to the context's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtime.Options) { o.Logger = logger }
}

// WithQueueSize overrides the per-state inbound queue capacity.
func WithQueueSize(n int) Option {
	return func(o *runtime.Options) { o.QueueSize = n }
}

// Start validates the machine, binds its actions (configuration failures are
// fatal here), wires the queues, and launches the control loops. The caller
// owns the instance until Stop.
func Start(ctx *domain.Context, machine *domain.Machine, opts ...Option) (*Instance, error) {
	var options runtime.Options
	for _, opt := range opts {
		opt(&options)
	}
	return runtime.Start(ctx, machine, options)
}

// Run is the synchronous convenience wrapper: start, submit, await, stop.
func Run(ctx *domain.Context, machine *domain.Machine, event domain.Event, timeout time.Duration, opts ...Option) (*Result, error) {
	inst, err := Start(ctx, machine, opts...)
	if err != nil {
		return nil, err
	}
	defer inst.Stop()

	if err := inst.Submit(event); err != nil {
		return nil, err
	}
	return inst.Await(timeout)
}

// IOSchemas computes a machine's entry and exit schemas without creating any
// queues: the one-of union over transitions leaving "start" and over
// transitions entering the terminal state. ctx may be nil; with empty tables
// unresolved specs are permissive, exactly as at runtime.
func IOSchemas(ctx *domain.Context, machine *domain.Machine) (input, output *schema.Schema) {
	return runtime.IOSchemas(ctx, machine)
}
