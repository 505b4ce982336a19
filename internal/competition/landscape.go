package competition

import "sort"

// ConflictKind classifies a pairwise hypothesis conflict.
type ConflictKind string

const (
	// ConflictContradictory: one hypothesis's supporting evidence appears in
	// the other's contradicting set.
	ConflictContradictory ConflictKind = "contradictory"
	// ConflictCompeting: same domain with shared evidence, both reading it
	// in their favor.
	ConflictCompeting ConflictKind = "competing"
	// ConflictOrthogonal: overlapping related nodes but disjoint domains.
	ConflictOrthogonal ConflictKind = "orthogonal"
)

// Conflict flags a tension between two hypotheses.
type Conflict struct {
	A    string       `json:"a"`
	B    string       `json:"b"`
	Kind ConflictKind `json:"kind"`
}

// Landscape is a read-only analysis of the current hypothesis set, consumed
// by the reflection and extraction stage narratives.
type Landscape struct {
	// Clusters groups hypothesis ids by similarity; singletons included.
	Clusters [][]string `json:"clusters"`
	// Conflicts lists pairwise tensions, ordered by registration.
	Conflicts []Conflict `json:"conflicts"`
	// Gaps are domains covered by exactly one hypothesis.
	Gaps []string `json:"gaps"`
}

// AnalyzeLandscape partitions the hypothesis set into similarity clusters via
// label propagation, flags pairwise conflicts, and surfaces domain coverage
// gaps. Read-only.
func (e *Engine) AnalyzeLandscape() Landscape {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ls := Landscape{
		Clusters:  e.clusterLocked(),
		Conflicts: e.conflictsLocked(),
		Gaps:      e.gapsLocked(),
	}
	return ls
}

// clusterLocked runs label propagation over the similarity graph: two
// hypotheses are adjacent when their domain overlap reaches 0.5 Jaccard or
// they share evidence, with weight = shared domain tag count + shared
// evidence count.
func (e *Engine) clusterLocked() [][]string {
	if len(e.order) == 0 {
		return nil
	}

	adj := make(map[string]map[string]int)
	for _, id := range e.order {
		adj[id] = make(map[string]int)
	}
	for i, idA := range e.order {
		for _, idB := range e.order[i+1:] {
			w := similarityWeight(e.hypotheses[idA], e.hypotheses[idB])
			if w > 0 {
				adj[idA][idB] = w
				adj[idB][idA] = w
			}
		}
	}

	labels := make(map[string]string, len(e.order))
	for _, id := range e.order {
		labels[id] = id
	}

	const maxIterations = 20
	for iter := 0; iter < maxIterations; iter++ {
		changed := 0
		for _, id := range e.order {
			neighbors := adj[id]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[string]int)
			max := 0
			for n, w := range neighbors {
				counts[labels[n]] += w
				if counts[labels[n]] > max {
					max = counts[labels[n]]
				}
			}

			var candidates []string
			for label, count := range counts {
				if count == max {
					candidates = append(candidates, label)
				}
			}
			sort.Strings(candidates)
			best := candidates[len(candidates)-1]

			if labels[id] != best {
				labels[id] = best
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	grouped := make(map[string][]string)
	var labelOrder []string
	for _, id := range e.order {
		label := labels[id]
		if _, seen := grouped[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		grouped[label] = append(grouped[label], id)
	}

	clusters := make([][]string, 0, len(labelOrder))
	for _, label := range labelOrder {
		clusters = append(clusters, grouped[label])
	}
	return clusters
}

func (e *Engine) conflictsLocked() []Conflict {
	var out []Conflict
	for i, idA := range e.order {
		for _, idB := range e.order[i+1:] {
			a, b := e.hypotheses[idA], e.hypotheses[idB]
			if kind, ok := classifyConflict(a, b); ok {
				out = append(out, Conflict{A: idA, B: idB, Kind: kind})
			}
		}
	}
	return out
}

func classifyConflict(a, b *Hypothesis) (ConflictKind, bool) {
	if sharesAny(a.SupportingEvidence, b.ContradictingEvidence) ||
		sharesAny(b.SupportingEvidence, a.ContradictingEvidence) {
		return ConflictContradictory, true
	}
	if sharesAny(a.Domain, b.Domain) && sharesAny(allEvidence(a), allEvidence(b)) {
		return ConflictCompeting, true
	}
	if sharesAny(a.RelatedNodes, b.RelatedNodes) && !sharesAny(a.Domain, b.Domain) {
		return ConflictOrthogonal, true
	}
	return "", false
}

// gapsLocked returns domains carried by exactly one hypothesis, sorted.
func (e *Engine) gapsLocked() []string {
	coverage := make(map[string]int)
	for _, id := range e.order {
		for _, d := range e.hypotheses[id].Domain {
			coverage[d]++
		}
	}
	var gaps []string
	for d, n := range coverage {
		if n == 1 {
			gaps = append(gaps, d)
		}
	}
	sort.Strings(gaps)
	return gaps
}

func similarityWeight(a, b *Hypothesis) int {
	sharedDomains := sharedCount(a.Domain, b.Domain)
	sharedEvidence := sharedCount(allEvidence(a), allEvidence(b))

	union := len(a.Domain) + len(b.Domain) - sharedDomains
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(sharedDomains) / float64(union)
	}
	if jaccard >= 0.5 || sharedEvidence > 0 {
		return sharedDomains + sharedEvidence
	}
	return 0
}

func sharedCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	n := 0
	seen := make(map[string]bool)
	for _, v := range b {
		if set[v] && !seen[v] {
			n++
			seen[v] = true
		}
	}
	return n
}
