// Package registry holds the set of currently-loaded tables, keyed by ID.
//
// The commands use it as the local Load collaborator: the CLI keeps its
// committed tables here for printing, the server for listing. The identifier
// set it exposes is what commit-time naming resolves against.
package registry

import (
	"context"
	"fmt"
	"sync"

	"tableimport/internal/table"
)

// Registry is an in-memory loaded-table set. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
	order  []string
}

func New() *Registry {
	return &Registry{tables: make(map[string]*table.Table)}
}

// LoadTable inserts or replaces a table, keyed by ID.
//
// Errors:
//   - When the table has no ID.
//   - When the table violates its structural invariants.
func (r *Registry) LoadTable(_ context.Context, t *table.Table) error {
	if t.ID == "" {
		return fmt.Errorf("registry: table has no id")
	}
	if err := t.CheckInvariants(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tables[t.ID]; !exists {
		r.order = append(r.order, t.ID)
	}
	r.tables[t.ID] = t
	return nil
}

// ExistingIDs returns a copy of the live identifier set.
func (r *Registry) ExistingIDs() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]struct{}, len(r.tables))
	for id := range r.tables {
		out[id] = struct{}{}
	}
	return out
}

// Get returns the table with the given ID.
func (r *Registry) Get(id string) (*table.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	return t, ok
}

// List returns the loaded tables in insertion order.
func (r *Registry) List() []*table.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*table.Table, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tables[id])
	}
	return out
}

// Remove deletes the table with the given ID. Removing an absent ID is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[id]; !ok {
		return
	}
	delete(r.tables, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
