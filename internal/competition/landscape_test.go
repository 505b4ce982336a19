package competition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeLandscape_ClustersBySimilarity(t *testing.T) {
	e, _ := newTestEngine()

	// Two hypotheses sharing evidence cluster together.
	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-1"}
	b := validHypothesis("h-b")
	b.SupportingEvidence = []string{"ev-1"}
	// A third in an unrelated domain stays a singleton.
	c := validHypothesis("h-c")
	c.Domain = []string{"astronomy"}

	for _, h := range []Hypothesis{a, b, c} {
		_, err := e.Register(h)
		require.NoError(t, err)
	}

	ls := e.AnalyzeLandscape()
	require.Len(t, ls.Clusters, 2)

	sizes := map[int]int{}
	for _, cluster := range ls.Clusters {
		sizes[len(cluster)]++
	}
	assert.Equal(t, 1, sizes[2])
	assert.Equal(t, 1, sizes[1])
}

func TestAnalyzeLandscape_Conflicts(t *testing.T) {
	e, _ := newTestEngine()

	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-x"}
	b := validHypothesis("h-b")
	b.ContradictingEvidence = []string{"ev-x"}

	c := validHypothesis("h-c")
	c.Domain = []string{"geology"}
	c.RelatedNodes = []string{"n-1"}
	d := validHypothesis("h-d")
	d.Domain = []string{"astronomy"}
	d.RelatedNodes = []string{"n-1"}

	for _, h := range []Hypothesis{a, b, c, d} {
		_, err := e.Register(h)
		require.NoError(t, err)
	}

	ls := e.AnalyzeLandscape()

	assert.Contains(t, ls.Conflicts, Conflict{A: "h-a", B: "h-b", Kind: ConflictContradictory})
	assert.Contains(t, ls.Conflicts, Conflict{A: "h-c", B: "h-d", Kind: ConflictOrthogonal})
}

func TestAnalyzeLandscape_CompetingConflict(t *testing.T) {
	e, _ := newTestEngine()

	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-shared"}
	b := validHypothesis("h-b")
	b.SupportingEvidence = []string{"ev-shared"}

	for _, h := range []Hypothesis{a, b} {
		_, err := e.Register(h)
		require.NoError(t, err)
	}

	ls := e.AnalyzeLandscape()
	assert.Contains(t, ls.Conflicts, Conflict{A: "h-a", B: "h-b", Kind: ConflictCompeting})
}

func TestAnalyzeLandscape_Gaps(t *testing.T) {
	e, _ := newTestEngine()

	a := validHypothesis("h-a")
	a.Domain = []string{"oceanography", "climate"}
	b := validHypothesis("h-b")
	b.Domain = []string{"oceanography"}

	for _, h := range []Hypothesis{a, b} {
		_, err := e.Register(h)
		require.NoError(t, err)
	}

	ls := e.AnalyzeLandscape()
	assert.Equal(t, []string{"climate"}, ls.Gaps)
}

func TestAnalyzeLandscape_EmptyEngine(t *testing.T) {
	e, _ := newTestEngine()
	ls := e.AnalyzeLandscape()
	assert.Empty(t, ls.Clusters)
	assert.Empty(t, ls.Conflicts)
	assert.Empty(t, ls.Gaps)
}
