// Package evidence keeps the per-evidence quality weights consulted by the
// hypothesis scoring functions. The registry is the only mutable state the
// competition engine shares across operations, so scenario simulation
// snapshots and restores it around every overlay.
package evidence

import "sync"

// Weight grades one piece of evidence. All components live in [0,1]; Set
// clamps out-of-range inputs.
type Weight struct {
	Weight                float64 `json:"weight"`
	Reliability           float64 `json:"reliability"`
	Relevance             float64 `json:"relevance"`
	Recency               float64 `json:"recency"`
	SourceCredibility     float64 `json:"source_credibility"`
	MethodologicalQuality float64 `json:"methodological_quality"`
}

// DefaultWeight is the neutral grade assumed for evidence that was cited but
// never explicitly weighed.
func DefaultWeight() Weight {
	return Weight{
		Weight:                0.5,
		Reliability:           0.5,
		Relevance:             0.5,
		Recency:               0.5,
		SourceCredibility:     0.5,
		MethodologicalQuality: 0.5,
	}
}

type Registry struct {
	mu      sync.RWMutex
	weights map[string]Weight
}

func NewRegistry() *Registry {
	return &Registry{weights: make(map[string]Weight)}
}

// Set records (or overwrites) the weight for an evidence id, clamping every
// component to [0,1].
func (r *Registry) Set(id string, w Weight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights[id] = Weight{
		Weight:                clamp01(w.Weight),
		Reliability:           clamp01(w.Reliability),
		Relevance:             clamp01(w.Relevance),
		Recency:               clamp01(w.Recency),
		SourceCredibility:     clamp01(w.SourceCredibility),
		MethodologicalQuality: clamp01(w.MethodologicalQuality),
	}
}

// Get returns the recorded weight, or the neutral default for unknown ids.
func (r *Registry) Get(id string) Weight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.weights[id]; ok {
		return w
	}
	return DefaultWeight()
}

// Has reports whether id has an explicit weight.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.weights[id]
	return ok
}

// Snapshot copies the full registry state.
func (r *Registry) Snapshot() map[string]Weight {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Weight, len(r.weights))
	for id, w := range r.weights {
		out[id] = w
	}
	return out
}

// Restore replaces the registry state with a previously taken snapshot.
func (r *Registry) Restore(snap map[string]Weight) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights = make(map[string]Weight, len(snap))
	for id, w := range snap {
		r.weights[id] = w
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
