package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/config"
	"github.com/reasonlab/noesis/internal/evidence"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
)

// mockReasoner answers by prompt content: the first rule whose substrings all
// occur in the prompt wins. Unmatched prompts get a bland default so the
// free-prose stages never need scripting.
type mockRule struct {
	contains []string
	reply    string
	err      error
}

type mockReasoner struct {
	mu    sync.Mutex
	rules []mockRule
}

func (m *mockReasoner) Reason(_ context.Context, prompt string, _ llm.Mode) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rules {
		matched := true
		for _, sub := range r.contains {
			if !strings.Contains(prompt, sub) {
				matched = false
				break
			}
		}
		if matched {
			return r.reply, r.err
		}
	}
	return "unremarkable prose", nil
}

func (m *mockReasoner) ReasonBatch(ctx context.Context, prompts []string, mode llm.Mode) ([]llm.BatchResult, error) {
	out := make([]llm.BatchResult, len(prompts))
	for i, prompt := range prompts {
		reply, err := m.Reason(ctx, prompt, mode)
		out[i] = llm.BatchResult{Index: i, Output: reply, Err: err}
	}
	return out, nil
}

const (
	framingReply = `{"field": "marine ecology", "topic": "Coral reef decline", ` +
		`"objectives": ["identify drivers", "rank interventions"]}`
	hypothesesReply = `{"hypotheses": [
		{"description": "thermal stress alpha drives the observed bleaching pattern",
		 "explanatory_power": 0.8, "falsifiability": 0.7, "simplicity": 0.6,
		 "novelty": 0.5, "testability": 0.7, "scope": "regional",
		 "domain": ["marine ecology"], "falsification_criteria": "no bleaching in cool years"},
		{"description": "nutrient runoff beta drives the observed bleaching pattern",
		 "explanatory_power": 0.6, "falsifiability": 0.7, "simplicity": 0.7,
		 "novelty": 0.6, "testability": 0.6, "scope": "regional",
		 "domain": ["marine ecology"], "falsification_criteria": "no gradient near outflows"}]}`
	strongStatsReply = `{"reliability": 0.8, "relevance": 0.7, "recency": 0.6,
		"source_credibility": 0.7, "methodological_quality": 0.7, "weight": 0.8,
		"stance": "supporting"}`
	weakStatsReply = `{"reliability": 0.2, "relevance": 0.3, "recency": 0.2,
		"source_credibility": 0.3, "methodological_quality": 0.3, "weight": 0.2,
		"stance": "contradicting"}`
	auditReply = `{"score": 0.8, "issue": "", "comment": "holds together"}`
)

func testConfig(dims ...string) config.PipelineConfig {
	if len(dims) == 0 {
		dims = []string{"Scope", "Biases"}
	}
	return config.PipelineConfig{
		Dimensions:             dims,
		HypothesesPerDimension: 2,
		PruneThreshold:         0.4,
		HighImpactThreshold:    0.7,
	}
}

func newTestPipeline(mock *mockReasoner, cfg config.PipelineConfig) *Pipeline {
	reg := evidence.NewRegistry()
	engine := competition.NewEngine(reg, zap.NewNop())
	return New(graph.NewStore(), mock, engine, reg, cfg, 1, zap.NewNop())
}

func happyRules() []mockRule {
	return []mockRule{
		{contains: []string{"Frame the following"}, reply: framingReply},
		{contains: []string{"Propose 2-"}, reply: hypothesesReply},
		{contains: []string{"Assess the quality"}, reply: strongStatsReply},
		{contains: []string{"Rate the importance"}, reply: "critical"},
		{contains: []string{"Audit the"}, reply: auditReply},
	}
}

func TestRun_AllNineStages(t *testing.T) {
	mock := &mockReasoner{rules: happyRules()}
	p := newTestPipeline(mock, testConfig())

	results, err := p.Run(context.Background(), "Why are coral reefs declining?")
	require.NoError(t, err)
	require.Len(t, results, StageCount)
	assert.Equal(t, StageCount, p.CompletedStage())

	root, ok := p.Store().Node("1")
	require.True(t, ok)
	assert.Equal(t, graph.NodeRoot, root.Type)
	assert.Equal(t, "Coral reef decline", root.Label)
	assert.Equal(t, "marine ecology", results[0].Context.Field)

	assert.Len(t, p.Store().NodesByType(graph.NodeDimension), 2)
	assert.Len(t, p.Store().NodesByType(graph.NodeHypothesis), 4)
	assert.Len(t, p.Store().NodesByType(graph.NodeEvidence), 4)
	assert.Len(t, results[2].Context.Hypotheses, 4)

	// Strong evidence stays above the prune threshold.
	assert.Empty(t, results[4].Nodes)
	assert.Len(t, p.Store().NodesByType(graph.NodeEvidence), 4)

	require.Len(t, results[5].Ranking, 2)
	for _, r := range results[5].Ranking {
		assert.InDelta(t, 1.0, r.Importance, 1e-9)
		assert.True(t, r.HighImpact)
		assert.Len(t, r.EvidenceIDs, 2)
	}

	draft, ok := p.Store().Node("7.1")
	require.True(t, ok)
	assert.Equal(t, graph.NodeSynthesis, draft.Type)
	for _, section := range reportSections {
		assert.Contains(t, draft.Metadata.Notes, "## "+section)
	}
	assert.NotContains(t, draft.Metadata.Notes, sectionUnavailable)

	require.NotNil(t, results[7].Quality)
	assert.InDelta(t, 0.8, results[7].Quality.Overall, 1e-9)
	assert.Zero(t, results[7].Quality.IssueCount)
	audit, ok := p.Store().Node("8.1")
	require.True(t, ok)
	assert.Equal(t, graph.NodeKnowledge, audit.Type)

	final, ok := p.Store().Node("9.1")
	require.True(t, ok)
	for _, component := range finalComponents {
		assert.Contains(t, final.Metadata.Notes, "## "+component)
	}

	// Competitions ran after hypothesis generation, pruning, and reflection.
	rounds := p.engine.Rounds()
	require.GreaterOrEqual(t, len(rounds), 3)
	for _, round := range rounds {
		assert.NotEmpty(t, round.WinnerID)
	}
}

func TestRunStage_RejectsOutOfOrder(t *testing.T) {
	p := newTestPipeline(&mockReasoner{rules: happyRules()}, testConfig())

	_, err := p.RunStage(context.Background(), StageDecomposition, "")
	var soe *StageOrderError
	require.ErrorAs(t, err, &soe)
	assert.Equal(t, StageDecomposition, soe.Requested)
	assert.Equal(t, 0, soe.Completed)

	_, err = p.RunStage(context.Background(), StageInitialization, "task under test")
	require.NoError(t, err)

	// Re-running a committed stage is rejected too.
	_, err = p.RunStage(context.Background(), StageInitialization, "task under test")
	require.ErrorAs(t, err, &soe)
	assert.Equal(t, 1, soe.Completed)
}

func TestInitialization_ReasonerFailureAborts(t *testing.T) {
	mock := &mockReasoner{rules: []mockRule{
		{contains: []string{"Frame the following"}, err: errors.New("model offline")},
	}}
	p := newTestPipeline(mock, testConfig())

	_, err := p.RunStage(context.Background(), StageInitialization, "doomed task")
	require.Error(t, err)
	assert.Equal(t, 0, p.CompletedStage())
	assert.Empty(t, p.Store().Nodes())
}

func TestInitialization_MalformedFramingDegradesToTask(t *testing.T) {
	mock := &mockReasoner{rules: []mockRule{
		{contains: []string{"Frame the following"}, reply: "not json at all"},
	}}
	p := newTestPipeline(mock, testConfig())

	res, err := p.RunStage(context.Background(), StageInitialization, "fallback topic task")
	require.NoError(t, err)
	assert.Equal(t, "fallback topic task", res.Context.Topic)

	root, ok := p.Store().Node("1")
	require.True(t, ok)
	assert.Equal(t, "fallback topic task", root.Label)
}

func TestDecomposition_FailedBranchDoesNotBlockSiblings(t *testing.T) {
	rules := append([]mockRule{
		{contains: []string{"Analyze the", "Biases"}, err: errors.New("timeout")},
	}, happyRules()...)
	p := newTestPipeline(&mockReasoner{rules: rules}, testConfig())

	_, err := p.RunStage(context.Background(), StageInitialization, "some task")
	require.NoError(t, err)
	res, err := p.RunStage(context.Background(), StageDecomposition, "")
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)

	var failedNode, okNode graph.Node
	for _, n := range res.Nodes {
		if n.Label == "Biases" {
			failedNode = n
		} else {
			okNode = n
		}
	}
	assert.True(t, failedNode.Metadata.ReasonerFailed)
	assert.Empty(t, failedNode.Metadata.Notes)
	assert.False(t, okNode.Metadata.ReasonerFailed)
	assert.NotEmpty(t, okNode.Metadata.Notes)
	assert.Len(t, p.Store().Edges(), 2)
}

func TestPruning_DropsWeakEvidenceAndItsEdges(t *testing.T) {
	// The beta hypothesis harvests weak, contradicting evidence; the alpha
	// evidence is strong. Only the beta evidence falls below the threshold.
	rules := []mockRule{
		{contains: []string{"Frame the following"}, reply: framingReply},
		{contains: []string{"Propose 2-"}, reply: hypothesesReply},
		{contains: []string{"Survey evidence", "alpha"}, reply: "ALPHA field surveys show tight coupling."},
		{contains: []string{"Survey evidence", "beta"}, reply: "BETA anecdotes are sparse and dated."},
		{contains: []string{"Assess the quality", "ALPHA"}, reply: strongStatsReply},
		{contains: []string{"Assess the quality", "BETA"}, reply: weakStatsReply},
	}
	p := newTestPipeline(&mockReasoner{rules: rules}, testConfig("Scope"))

	ctx := context.Background()
	for stage := StageInitialization; stage <= StageEvidence; stage++ {
		_, err := p.RunStage(ctx, stage, "coral task")
		require.NoError(t, err)
	}
	require.Len(t, p.Store().NodesByType(graph.NodeEvidence), 2)
	edgesBefore := len(p.Store().Edges())

	res, err := p.RunStage(ctx, StagePruning, "")
	require.NoError(t, err)
	assert.Contains(t, res.Narrative, "Pruned 1 node(s)")

	evidenceLeft := p.Store().NodesByType(graph.NodeEvidence)
	require.Len(t, evidenceLeft, 1)
	assert.Equal(t, "4.1.1", evidenceLeft[0].ID)

	// The weak node is flagged out of the live set, not deleted.
	weak, ok := p.Store().Node("4.1.2")
	require.True(t, ok)
	assert.True(t, weak.Metadata.Pruned)

	// Both edges touching the pruned evidence node went with it.
	assert.Equal(t, edgesBefore-2, len(p.Store().Edges()))
	live := make(map[string]bool)
	for _, n := range p.Store().Nodes() {
		live[n.ID] = true
	}
	for _, e := range p.Store().Edges() {
		assert.True(t, live[e.Source], "edge %s has dead source", e.ID)
		assert.True(t, live[e.Target], "edge %s has dead target", e.ID)
	}
}

func TestRewind_ReopensEarlierStage(t *testing.T) {
	p := newTestPipeline(&mockReasoner{rules: happyRules()}, testConfig())
	ctx := context.Background()

	for stage := StageInitialization; stage <= StageHypotheses; stage++ {
		_, err := p.RunStage(ctx, stage, "rewindable task")
		require.NoError(t, err)
	}
	require.Len(t, p.Store().NodesByType(graph.NodeHypothesis), 4)

	require.NoError(t, p.Rewind(StageHypotheses))
	assert.Equal(t, StageDecomposition, p.CompletedStage())
	assert.Empty(t, p.Store().NodesByType(graph.NodeHypothesis))
	assert.Len(t, p.Store().NodesByType(graph.NodeDimension), 2)

	// Rewinding past the cursor is rejected.
	var soe *StageOrderError
	require.ErrorAs(t, p.Rewind(StageEvidence), &soe)
}

func TestImportanceScore_WordMapping(t *testing.T) {
	cases := map[string]float64{
		"critical":                     1.0,
		"High":                         0.8,
		" moderate.":                   0.6,
		"low":                          0.4,
		"minimal":                      0.2,
		"I would rate this as high.":   0.8,
		"somewhere between, honestly?": 0.5,
		// Multiple rating words resolve to the strongest mention.
		"between low and high":            0.8,
		"critical, though arguably high.": 1.0,
	}
	for reply, want := range cases {
		assert.InDelta(t, want, importanceScore(reply), 1e-9, "reply %q", reply)
	}
}
