package loom

import (
	"github.com/aretw0/loom/internal/runtime"
	"github.com/aretw0/loom/pkg/domain"
)

// Chain sequences independently started machine instances: machine k's
// terminal output becomes machine k+1's start input automatically. It
// exposes the same Start/Submit/Await/Stop surface as a single instance.
type Chain = runtime.Chain

// NewChain validates the machines (N >= 2) and builds an unstarted chain
// over one shared action context. Starting twice, or submitting or awaiting
// before starting, are errors.
func NewChain(ctx *domain.Context, machines []*domain.Machine, opts ...Option) (*Chain, error) {
	var options runtime.Options
	for _, opt := range opts {
		opt(&options)
	}
	return runtime.NewChain(ctx, machines, options)
}
