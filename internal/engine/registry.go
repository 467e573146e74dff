package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/anima-core/internal/errtrack"
)

// Registry holds the live entities of one process. Entities are created
// lazily and never share mutable state.
type Registry struct {
	mu       sync.RWMutex
	config   Config
	deps     Deps
	entities map[string]*Entity
}

// NewRegistry creates an empty registry. deps.Rand is ignored since a Rand
// cannot be shared between entities; Config.Seed is used instead.
func NewRegistry(config Config, deps Deps) *Registry {
	deps.Rand = nil
	return &Registry{
		config:   config,
		deps:     deps,
		entities: make(map[string]*Entity),
	}
}

// Get returns the entity for id, creating (or resuming) it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Entity, error) {
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities[id]; ok {
		return e, nil
	}
	e, err := NewEntity(ctx, id, r.config, r.deps)
	if err != nil {
		return nil, err
	}
	r.entities[id] = e
	return e, nil
}

// Lookup returns an already live entity.
func (r *Registry) Lookup(id string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// IDs returns the live entity ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Remove drops id from the registry. Persisted versions are kept.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[id]; !ok {
		return errtrack.Validationf("remove entity", "unknown entity %q", id)
	}
	delete(r.entities, id)
	r.deps.Metrics.ForgetEntity(id)
	return nil
}

// TickAll ticks every live entity in id order. A failing entity does not
// stop the others; all errors are joined.
func (r *Registry) TickAll(ctx context.Context) ([]Report, error) {
	var (
		reports []Report
		errs    []error
	)
	for _, id := range r.IDs() {
		e, ok := r.Lookup(id)
		if !ok {
			continue
		}
		rep, err := e.Tick(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("tick %s: %w", id, err))
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}
