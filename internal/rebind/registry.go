package rebind

import (
	"context"
	"fmt"
	"sync"
)

// Registry holds the active rebind map and serializes authoring edits
// against the tick loop.
//
// The tick loop reads the active map without copying (Active); authoring
// surfaces never touch that instance. Edits arrive as whole validated
// maps via Stage, and the tick loop applies them between ticks with
// SwapStaged, so an evaluation pass never observes a half-edited map.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Registry struct {
	repo Repository

	mu     sync.RWMutex
	active *RebindMap
	staged *RebindMap
}

// NewRegistry creates a registry backed by the given repository.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// LoadActive loads the active map from storage into the registry.
//
// Called at startup. ErrNoActiveMap is returned as-is so the caller can
// start the tick loop idle until a map is activated.
func (r *Registry) LoadActive(ctx context.Context) error {
	m, err := r.repo.GetActive(ctx)
	if err != nil {
		return err
	}
	if err := ValidateMap(m); err != nil {
		return fmt.Errorf("stored active map: %w", err)
	}

	r.mu.Lock()
	r.active = m
	r.staged = nil
	r.mu.Unlock()
	return nil
}

// Active returns the live map the tick loop evaluates.
//
// The returned pointer is shared with the tick loop; callers other than
// the tick loop must treat it as read-only. Returns nil when no map is
// active.
func (r *Registry) Active() *RebindMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Snapshot returns a deep copy of the active map for reads that outlive
// the lock (API responses, saving).
func (r *Registry) Snapshot() (*RebindMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil, ErrNoActiveMap
	}
	return r.active.DeepCopy(), nil
}

// Stage validates a replacement map and queues it for the next tick
// boundary. A later Stage before the swap replaces the queued map.
func (r *Registry) Stage(m *RebindMap) error {
	if err := ValidateMap(m); err != nil {
		return err
	}
	staged := m.DeepCopy()

	r.mu.Lock()
	r.staged = staged
	r.mu.Unlock()
	return nil
}

// SwapStaged applies a queued replacement, if any.
//
// Called by the tick loop between ticks, never during evaluation.
//
// Returns:
//   - *RebindMap: The new active map
//   - bool: true if a swap happened
func (r *Registry) SwapStaged() (*RebindMap, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.staged == nil {
		return r.active, false
	}
	r.active = r.staged
	r.staged = nil
	return r.active, true
}

// HarvestState folds the engine's live transform state back into the
// active map's rebinds, preparing it for a save.
//
// Parameters:
//   - states: Engine state cells keyed by rebind ID (from Engine.ExportState)
func (r *Registry) HarvestState(states map[string]TransformState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return
	}
	r.active.EachRebind(func(_ Kind, rb *Rebind) {
		if !IsStateful(rb.Transform.Kind) {
			return
		}
		if s, ok := states[rb.ID]; ok {
			cell := s
			rb.State = &cell
		}
	})
}

// Save persists the active map, including harvested transform state.
func (r *Registry) Save(ctx context.Context) error {
	snapshot, err := r.Snapshot()
	if err != nil {
		return err
	}
	return r.repo.Update(ctx, snapshot)
}
