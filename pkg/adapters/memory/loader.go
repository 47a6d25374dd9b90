// Package memory provides an in-memory machine loader, used by tests and by
// the sub-machine action when definitions are registered programmatically.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
)

// Loader implements ports.MachineLoader over a map.
type Loader struct {
	mu       sync.RWMutex
	machines map[string]*domain.Machine
}

// NewLoader creates a loader holding the given machines, keyed by their ids.
func NewLoader(machines ...*domain.Machine) *Loader {
	l := &Loader{machines: make(map[string]*domain.Machine, len(machines))}
	for _, m := range machines {
		l.machines[m.ID] = m
	}
	return l
}

// Add registers a machine, overwriting any previous definition with the
// same id.
func (l *Loader) Add(m *domain.Machine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.machines[m.ID] = m
}

// LoadMachine resolves a machine by id.
func (l *Loader) LoadMachine(_ context.Context, id string) (*domain.Machine, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.machines[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, domain.ErrMachineNotFound)
	}
	return m, nil
}

// IDs returns the registered machine identifiers, sorted.
func (l *Loader) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.machines))
	for id := range l.machines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
