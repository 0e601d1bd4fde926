package pipeline

import "sync"

// Registry is the shared table of in-flight tagging runs: link id to a
// progress fraction in [0,1]. The UI reads it to render per-link indicators
// and to suppress re-entry while a run is active. Entries exist only between
// Begin and Finish; a run that never starts never appears.
type Registry struct {
	mu       sync.RWMutex
	progress map[string]float64
}

// NewRegistry creates an empty progress registry.
func NewRegistry() *Registry {
	return &Registry{progress: make(map[string]float64)}
}

// Begin registers a run at the given starting fraction.
func (r *Registry) Begin(linkID string, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[linkID] = fraction
}

// Advance raises the run's fraction. Values for one link id are
// monotonically non-decreasing within a run; a lower value is ignored.
func (r *Registry) Advance(linkID string, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.progress[linkID]
	if !ok || fraction < current {
		return
	}
	r.progress[linkID] = fraction
}

// Finish removes the run's entry. Always called at terminal resolution,
// success or failure.
func (r *Registry) Finish(linkID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.progress, linkID)
}

// Progress returns the run's current fraction, if the link is in flight.
func (r *Registry) Progress(linkID string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fraction, ok := r.progress[linkID]
	return fraction, ok
}

// Active reports whether a run is in flight for the link. Callers use this
// to avoid re-entering the pipeline for the same link.
func (r *Registry) Active(linkID string) bool {
	_, ok := r.Progress(linkID)
	return ok
}

// Snapshot returns a copy of all in-flight entries.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.progress))
	for id, fraction := range r.progress {
		out[id] = fraction
	}
	return out
}
