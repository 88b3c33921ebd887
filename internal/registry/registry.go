// Package registry holds the process-wide aggregation of extraction results.
//
// The registry is the single shared-mutable boundary in the generator: the
// otherwise-incremental, per-artifact pipeline writes into it, and emission
// of any single artifact reads it in full. Its lifecycle is owned explicitly
// by the caller: created at process start, reset on a cold rebuild, never
// implicitly shared through package state.
package registry

import (
	"sync"

	"behaviorgen/internal/extract"
)

// Registry maps artifact identity to its extracted context.
//
// Semantics are insert-or-replace, never delete: an artifact removed from
// the input set leaves a stale entry for the rest of the process lifetime.
// That staleness is an accepted limitation of the incremental model; a cold
// rebuild (Reset) is the corrective.
//
// All methods are safe for concurrent use. Snapshot observes a consistent
// set of entries, never a partial update.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*extract.ArtifactContext
	order []string // artifact ids, order of first insertion
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byID: make(map[string]*extract.ArtifactContext),
	}
}

// Upsert inserts or replaces the entry for ctx.ArtifactID. Replacement is
// always whole-context; discovery order is the order of first insertion and
// is unaffected by replacement.
func (r *Registry) Upsert(ctx *extract.ArtifactContext) {
	if ctx == nil || ctx.ArtifactID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, seen := r.byID[ctx.ArtifactID]; !seen {
		r.order = append(r.order, ctx.ArtifactID)
	}
	r.byID[ctx.ArtifactID] = ctx
}

// Get returns the current entry for an artifact id, if any.
func (r *Registry) Get(artifactID string) (*extract.ArtifactContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, ok := r.byID[artifactID]
	return ctx, ok
}

// Snapshot returns all current entries in discovery order.
//
// The returned slice is a copy; the contexts themselves are immutable after
// extraction, so sharing the pointers is safe.
func (r *Registry) Snapshot() []*extract.ArtifactContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*extract.ArtifactContext, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered artifacts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Reset clears all entries. This is the cold-rebuild hook: the only way a
// stale entry ever leaves the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]*extract.ArtifactContext)
	r.order = nil
}
