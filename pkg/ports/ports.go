package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// LLMClient is the provider-client boundary. Declared on the domain context
// (it travels with every step); aliased here so adapters implement a ports
// type like every other boundary.
type LLMClient = domain.LLMClient

// MachineLoader resolves machine definitions by identifier.
type MachineLoader = domain.MachineLoader

// TrailStore persists an instance's trail as an opaque ordered sequence.
// Persistence is an external collaborator's concern: the engine feeds a
// store through its transition hooks, it never depends on one.
type TrailStore interface {
	// Append adds one entry to the run's trail.
	Append(ctx context.Context, runID string, entry domain.TrailEntry) error

	// Load returns the stored trail for a run, in append order.
	Load(ctx context.Context, runID string) (domain.Trail, error)

	// Delete removes the stored trail for a run.
	Delete(ctx context.Context, runID string) error
}
