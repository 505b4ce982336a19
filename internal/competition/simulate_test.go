package competition

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonlab/noesis/internal/evidence"
)

func TestSimulate_ScenarioIsolation(t *testing.T) {
	e, reg := newTestEngine()
	reg.Set("ev-1", evidence.Weight{Weight: 0.9, Reliability: 0.8})

	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-1"}
	_, err := e.Register(a)
	require.NoError(t, err)
	_, err = e.Register(validHypothesis("h-b"))
	require.NoError(t, err)

	before := reg.Snapshot()
	roundsBefore := len(e.Rounds())

	outcomes, err := e.Simulate([]string{"h-a", "h-b"}, DefaultCriteria(), []Scenario{
		{Name: "evidence collapses", EvidenceOverrides: map[string]evidence.Weight{
			"ev-1": {Weight: 0.1, Reliability: 0.1},
		}},
		{Name: "novelty is king", CriteriaOverrides: map[Criterion]float64{
			CriterionNovelty: 5.0,
		}},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// The live registry equals its pre-call snapshot.
	if diff := cmp.Diff(before, reg.Snapshot()); diff != "" {
		t.Fatalf("registry mutated by simulation (-before +after):\n%s", diff)
	}
	// No round was appended to the history.
	assert.Equal(t, roundsBefore, len(e.Rounds()))
}

func TestSimulate_ConcurrentEvaluateSeesOnlyLiveWeights(t *testing.T) {
	e, reg := newTestEngine()
	reg.Set("ev-1", evidence.Weight{Weight: 0.8, Reliability: 0.8})

	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-1"}
	_, err := e.Register(a)
	require.NoError(t, err)
	_, err = e.Register(validHypothesis("h-b"))
	require.NoError(t, err)

	baseline, err := e.Evaluate("h-a", DefaultCriteria())
	require.NoError(t, err)

	collapse := Scenario{Name: "evidence collapses", EvidenceOverrides: map[string]evidence.Weight{
		"ev-1": {Weight: 0.1, Reliability: 0.1},
	}}
	scenarios := make([]Scenario, 64)
	for i := range scenarios {
		scenarios[i] = collapse
	}

	// Readers racing the simulation must only ever see the live weights:
	// the registry is restored before the engine lock is released.
	var (
		mu     sync.Mutex
		scores []float64
	)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			ev, err := e.Evaluate("h-a", DefaultCriteria())
			if err != nil {
				return
			}
			mu.Lock()
			scores = append(scores, ev.Overall)
			mu.Unlock()
		}
	}()

	_, err = e.Simulate([]string{"h-a", "h-b"}, DefaultCriteria(), scenarios)
	require.NoError(t, err)
	close(done)
	wg.Wait()

	for _, s := range scores {
		assert.InDelta(t, baseline.Overall, s, 1e-9)
	}
}

func TestSimulate_OutcomeFields(t *testing.T) {
	e, reg := newTestEngine()
	reg.Set("ev-1", evidence.Weight{Weight: 1.0, Reliability: 0.9})

	a := validHypothesis("h-a")
	a.SupportingEvidence = []string{"ev-1"}
	a.ExplanatoryPower = 0.9
	_, err := e.Register(a)
	require.NoError(t, err)

	b := validHypothesis("h-b")
	b.ExplanatoryPower = 0.2
	_, err = e.Register(b)
	require.NoError(t, err)

	outcomes, err := e.Simulate([]string{"h-a", "h-b"}, DefaultCriteria(), []Scenario{
		{Name: "baseline"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	out := outcomes[0]
	assert.Equal(t, "baseline", out.Scenario)
	assert.Equal(t, "h-a", out.WinnerID)
	assert.Greater(t, out.Margin, 0.0)
	assert.Equal(t, out.Confidence, out.Margin)
	assert.GreaterOrEqual(t, out.Robustness, 0.0)
	assert.LessOrEqual(t, out.Robustness, 1.0)
}

func TestSimulate_CriteriaOverridesFlipWinner(t *testing.T) {
	e, _ := newTestEngine()

	a := validHypothesis("h-a")
	a.ExplanatoryPower = 0.9
	a.Novelty = 0.0
	_, err := e.Register(a)
	require.NoError(t, err)

	b := validHypothesis("h-b")
	b.ExplanatoryPower = 0.2
	b.Novelty = 1.0
	_, err = e.Register(b)
	require.NoError(t, err)

	outcomes, err := e.Simulate([]string{"h-a", "h-b"}, DefaultCriteria(), []Scenario{
		{Name: "baseline"},
		{Name: "novelty dominates", CriteriaOverrides: map[Criterion]float64{
			CriterionNovelty: 50.0,
		}},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "h-a", outcomes[0].WinnerID)
	assert.Equal(t, "h-b", outcomes[1].WinnerID)
}
