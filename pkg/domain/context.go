package domain

import (
	"context"
	"log/slog"
	"sync"
)

// Defaults carries the provider and model used by LLM-bound actions when the
// invocation configuration does not override them.
type Defaults struct {
	Provider string
	Model    string
}

// RetryPolicy bounds the validation-failure retry loop of a single step.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per step; 0 means
	// unbounded. Exhaustion terminates the instance via the bail-out path.
	MaxAttempts int
}

// DefaultMaxAttempts bounds retries unless the caller opts out explicitly.
const DefaultMaxAttempts = 8

// LLMClient is the boundary to provider HTTP clients. Call is asynchronous:
// exactly one of onSuccess/onError fires exactly once per invocation.
// Adapters live under pkg/adapters; tests use scripted fakes.
type LLMClient interface {
	Call(ctx context.Context, provider, model string, messages []Message, onSuccess func(content string), onError func(err error))
}

// MachineLoader resolves machine definitions by identifier, used by the
// sub-machine action. Kept indirection-friendly so tests can substitute a
// fixed definition.
type MachineLoader interface {
	LoadMachine(ctx context.Context, id string) (*Machine, error)
}

// Hooks are optional observability callbacks fired by the engine.
// All fields may be nil. Callbacks run on the engine goroutine and must not
// block.
type Hooks struct {
	// OnTransition fires after a successful, non-omitted transition.
	OnTransition func(machineID string, entry TrailEntry)
	// OnFailure fires after a validation failure is recorded.
	OnFailure func(machineID string, entry TrailEntry)
	// OnBailout fires when an instance takes the fatal path.
	OnBailout func(machineID, from string, detail any)
	// OnComplete fires once when an instance reaches its terminal state.
	OnComplete func(machineID string, trail Trail)
}

// Merge combines two hook sets; both fire, h first.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnTransition: chainEntry(h.OnTransition, other.OnTransition),
		OnFailure:    chainEntry(h.OnFailure, other.OnFailure),
		OnBailout:    chainBailout(h.OnBailout, other.OnBailout),
		OnComplete:   chainComplete(h.OnComplete, other.OnComplete),
	}
}

func chainEntry(a, b func(string, TrailEntry)) func(string, TrailEntry) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(machineID string, entry TrailEntry) {
		a(machineID, entry)
		b(machineID, entry)
	}
}

func chainBailout(a, b func(string, string, any)) func(string, string, any) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(machineID, from string, detail any) {
		a(machineID, from, detail)
		b(machineID, from, detail)
	}
}

func chainComplete(a, b func(string, Trail)) func(string, Trail) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(machineID string, trail Trail) {
		a(machineID, trail)
		b(machineID, trail)
	}
}

// Context is the shared value threaded unchanged through every action
// invocation unless an action deliberately hands a modified copy to its
// completion callback. It is read-mostly: concurrent loops never mutate it in
// place, they pass replacements forward.
type Context struct {
	// Values is opaque caller payload.
	Values map[string]any

	Defaults Defaults
	Retry    RetryPolicy

	// Actions and Resolvers are the string-keyed registries consulted by
	// the engine; both are resolved at instance start and cached here.
	Actions   ActionRegistry
	Resolvers map[string]ResolverFunc

	// Defs are caller-supplied schema definitions, merged over the
	// machine's own on name collision.
	Defs map[string]any

	Loader MachineLoader
	Client LLMClient

	Hooks  Hooks
	Logger *slog.Logger

	// cleanup is instance-scoped and shared by every clone, so resources
	// acquired mid-run (subprocess bridges) are released exactly once at
	// stop regardless of how often the context value was replaced.
	cleanup *cleanupList
}

// NewContext creates a context with empty registries and the default retry
// policy.
func NewContext() *Context {
	return &Context{
		Values:    map[string]any{},
		Retry:     RetryPolicy{MaxAttempts: DefaultMaxAttempts},
		Resolvers: map[string]ResolverFunc{},
		Defs:      map[string]any{},
		Logger:    slog.New(slog.DiscardHandler),
		cleanup:   &cleanupList{},
	}
}

// Clone returns a shallow copy sharing registries and the cleanup list.
// Actions that want to "mutate" the context clone it, adjust the copy, and
// hand the copy to their completion callback.
func (c *Context) Clone() *Context {
	out := *c
	out.Values = make(map[string]any, len(c.Values))
	for k, v := range c.Values {
		out.Values[k] = v
	}
	return &out
}

// Fork returns a clone with a fresh, empty cleanup list. Used when the same
// action context seeds several instances (chains, sub-machines) whose
// resources must be released independently.
func (c *Context) Fork() *Context {
	out := c.Clone()
	out.cleanup = &cleanupList{}
	return out
}

// OnCleanup registers fn to run when the owning instance stops.
func (c *Context) OnCleanup(fn func()) {
	if c.cleanup == nil {
		c.cleanup = &cleanupList{}
	}
	c.cleanup.add(fn)
}

// RunCleanup runs and discards all registered cleanup hooks. Safe to call
// more than once; each hook runs exactly once.
func (c *Context) RunCleanup() {
	if c.cleanup != nil {
		c.cleanup.run()
	}
}

// Log returns the configured logger, falling back to a no-op handler.
func (c *Context) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

type cleanupList struct {
	mu  sync.Mutex
	fns []func()
}

func (l *cleanupList) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

func (l *cleanupList) run() {
	l.mu.Lock()
	fns := l.fns
	l.fns = nil
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
