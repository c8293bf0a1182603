package table

import (
	"context"
	"log"
	"sync"

	"agentpoker/internal/engine"
	"agentpoker/pkg/rng"
)

// SnapshotLoader is optionally implemented by a Persister that can restore
// a table's last persisted state at actor creation.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, tableID string) (*engine.State, error)
}

// Registry looks up or lazily creates table actors: an RWMutex-guarded map
// from table id to its single running actor.
type Registry struct {
	mu      sync.RWMutex
	ctx     context.Context
	tables  map[string]*Actor
	persist Persister
	onHand  HandCommitHook
	onEvict EvictHook
}

// OnEvict sets the eviction callback passed to every actor the registry
// creates. Must be called before the first GetOrCreate.
func (r *Registry) OnEvict(fn EvictHook) { r.onEvict = fn }

// NewRegistry builds an empty registry. ctx bounds the lifetime of every
// actor it starts; persist/onHand may be nil.
func NewRegistry(ctx context.Context, persist Persister, onHand HandCommitHook) *Registry {
	return &Registry{
		ctx:     ctx,
		tables:  make(map[string]*Actor),
		persist: persist,
		onHand:  onHand,
	}
}

// GetOrCreate returns the actor for tableID, starting a fresh one if none
// exists yet.
func (r *Registry) GetOrCreate(tableID string) *Actor {
	r.mu.RLock()
	a, ok := r.tables[tableID]
	r.mu.RUnlock()
	if ok {
		return a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.tables[tableID]; ok {
		return a
	}
	sys, err := rng.NewSystem()
	if err != nil {
		// crypto/rand is unavailable: this is an unrecoverable host defect,
		// not a request-level error.
		panic("table: " + err.Error())
	}
	a = NewActor(tableID, sys, r.persist, r.onHand)
	a.OnEvict(r.onEvict)
	if loader, ok := r.persist.(SnapshotLoader); ok {
		state, err := loader.LoadSnapshot(r.ctx, tableID)
		if err != nil {
			log.Printf("table %s: load snapshot: %v", tableID, err)
		} else {
			a.restoreState(state)
		}
	}
	a.Start(r.ctx)
	r.tables[tableID] = a
	return a
}

// Get returns the actor for tableID, or nil if it does not exist.
func (r *Registry) Get(tableID string) *Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[tableID]
}

// Reset stops and discards tableID's actor; the next GetOrCreate call
// builds a fresh one.
func (r *Registry) Reset(tableID string) {
	r.mu.Lock()
	a, ok := r.tables[tableID]
	if ok {
		delete(r.tables, tableID)
	}
	r.mu.Unlock()
	if ok {
		a.Stop()
	}
}

// List returns a summary of every live table.
func (r *Registry) List() []*Summary {
	r.mu.RLock()
	actors := make([]*Actor, 0, len(r.tables))
	for _, a := range r.tables {
		actors = append(actors, a)
	}
	r.mu.RUnlock()

	summaries := make([]*Summary, 0, len(actors))
	for _, a := range actors {
		summaries = append(summaries, a.GetSummary())
	}
	return summaries
}

// StopAll stops every live actor (graceful shutdown).
func (r *Registry) StopAll() {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.tables))
	for _, a := range r.tables {
		actors = append(actors, a)
	}
	r.tables = make(map[string]*Actor)
	r.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
}
