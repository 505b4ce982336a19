package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/common"
	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/evidence"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
)

type gatheredEvidence struct {
	hypothesis graph.Node
	summary    string
	citation   string
	stats      evidenceStats
}

type evidenceStats struct {
	Reliability           float64 `json:"reliability"`
	Relevance             float64 `json:"relevance"`
	Recency               float64 `json:"recency"`
	SourceCredibility     float64 `json:"source_credibility"`
	MethodologicalQuality float64 `json:"methodological_quality"`
	Weight                float64 `json:"weight"`
	Stance                string  `json:"stance"`
}

// runEvidence gathers supporting or contradicting evidence for every live
// hypothesis. Each branch runs three reasoner passes (literature harvest,
// citation, quality assessment); branch failures degrade to a skipped
// hypothesis rather than aborting the stage. All nodes and edges land in one
// commit so a partial harvest never reaches the graph.
func (p *Pipeline) runEvidence(ctx context.Context) (StageResult, error) {
	rctx := p.Context()
	hyps := p.store.NodesByType(graph.NodeHypothesis)
	if len(hyps) == 0 {
		return StageResult{}, fmt.Errorf("no hypotheses to gather evidence for")
	}

	branches := fanOut(ctx, p.workers, hyps, func(ctx context.Context, _ int, hyp graph.Node) (gatheredEvidence, error) {
		harvest, err := p.reasoner.Reason(ctx, fmt.Sprintf(
			"Survey evidence bearing on this hypothesis about %q: %s\n"+
				"Summarize the strongest finding in 2-3 sentences.",
			rctx.Topic, hyp.Label), llm.ModeSearch)
		if err != nil {
			return gatheredEvidence{}, err
		}

		citation, err := p.reasoner.Reason(ctx, fmt.Sprintf(
			"Provide the single most representative citation for this finding:\n%s", harvest),
			llm.ModePlain)
		if err != nil {
			return gatheredEvidence{}, err
		}

		reply, err := p.reasoner.Reason(ctx, fmt.Sprintf(
			"Assess the quality of this evidence:\n%s\n\n"+
				`Reply as {"reliability": 0.0, "relevance": 0.0, "recency": 0.0, `+
				`"source_credibility": 0.0, "methodological_quality": 0.0, "weight": 0.0, `+
				`"stance": "supporting|contradicting"}`, harvest),
			llm.ModeStructured)
		if err != nil {
			return gatheredEvidence{}, err
		}
		stats, perr := common.ParseJSON[evidenceStats](reply)
		if perr != nil {
			// Unparseable assessment degrades to neutral defaults.
			stats = evidenceStats{
				Reliability: 0.5, Relevance: 0.5, Recency: 0.5,
				SourceCredibility: 0.5, MethodologicalQuality: 0.5, Weight: 0.5,
			}
		}
		return gatheredEvidence{hypothesis: hyp, summary: harvest, citation: citation, stats: stats}, nil
	})

	now := time.Now().UTC()
	var nodes []graph.Node
	var edges []graph.Edge
	type attachment struct {
		hypID, evID string
		supporting  bool
		weight      evidence.Weight
	}
	var attachments []attachment
	failed := 0

	for i, hyp := range hyps {
		br := branches[i]
		if br.err != nil {
			failed++
			p.logger.Warn("evidence gathering failed",
				zap.String("hypothesis", hyp.ID), zap.Error(br.err))
			continue
		}

		g := br.value
		evID := "4." + strings.TrimPrefix(hyp.ID, "3.")
		supporting := g.stats.Stance != "contradicting"

		nodes = append(nodes, graph.Node{
			ID:    evID,
			Label: truncate(g.summary, 80),
			Type:  graph.NodeEvidence,
			Confidence: []float64{
				clamp01(g.stats.Reliability),
				clamp01(g.stats.Relevance),
				clamp01(g.stats.Recency),
				clamp01(g.stats.MethodologicalQuality),
			},
			Metadata: graph.Metadata{
				SourceDescription: g.citation,
				Notes:             g.summary,
				ParentDimension:   hyp.Metadata.ParentDimension,
			},
			CreatedAt: now,
		})

		edgeType := graph.EdgeSupportive
		if !supporting {
			edgeType = graph.EdgeContradictory
		}
		edges = append(edges,
			graph.Edge{
				ID:         edgeID(hyp.ID, evID),
				Source:     hyp.ID,
				Target:     evID,
				Type:       graph.EdgeCausalDirect,
				Confidence: clamp01(g.stats.Relevance),
				CreatedAt:  now,
			},
			graph.Edge{
				ID:         edgeID(evID, hyp.ID),
				Source:     evID,
				Target:     hyp.ID,
				Type:       edgeType,
				Confidence: clamp01(g.stats.Reliability),
				CreatedAt:  now,
			},
		)

		attachments = append(attachments, attachment{
			hypID:      hyp.ID,
			evID:       evID,
			supporting: supporting,
			weight: evidence.Weight{
				Weight:                g.stats.Weight,
				Reliability:           g.stats.Reliability,
				Relevance:             g.stats.Relevance,
				Recency:               g.stats.Recency,
				SourceCredibility:     g.stats.SourceCredibility,
				MethodologicalQuality: g.stats.MethodologicalQuality,
			},
		})
	}

	if err := p.commit(nodes, edges); err != nil {
		return StageResult{}, err
	}
	for _, a := range attachments {
		p.weights.Set(a.evID, a.weight)
		if err := p.engine.AttachEvidence(a.hypID, a.evID, a.supporting); err != nil {
			p.logger.Warn("evidence attachment failed",
				zap.String("hypothesis", a.hypID), zap.Error(err))
		}
	}

	return StageResult{
		Nodes: nodes,
		Edges: edges,
		Narrative: fmt.Sprintf("Gathered evidence for %d of %d hypotheses (%d failure(s)).",
			len(nodes), len(hyps), failed),
	}, nil
}

// runPruning flags weak evidence and re-arbitrates the surviving
// hypotheses. Root and knowledge nodes are never pruned regardless of
// confidence.
func (p *Pipeline) runPruning(ctx context.Context) (StageResult, error) {
	threshold := p.cfg.PruneThreshold
	pruned := p.store.PruneNodes(func(n graph.Node) bool {
		if n.Type != graph.NodeEvidence {
			return false
		}
		return n.MeanConfidence() < threshold
	})

	survivors := p.store.NodesByType(graph.NodeHypothesis)
	if len(survivors) >= 2 {
		if _, err := p.engine.Conduct(nodeIDs(survivors), competition.DefaultCriteria(), nil); err != nil {
			p.logger.Warn("post-prune competition failed", zap.Error(err))
		}
	}

	return StageResult{
		Narrative: fmt.Sprintf("Pruned %d node(s) below confidence %.2f; %d hypothesis(es) remain.",
			len(pruned), threshold, len(survivors)),
	}, nil
}

// runExtraction clusters live evidence by originating dimension and asks the
// reasoner for a qualitative importance judgment per cluster. Topology is
// untouched; each evidence node only gets its impact score annotated.
func (p *Pipeline) runExtraction(ctx context.Context) (StageResult, error) {
	rctx := p.Context()

	clusters := map[string][]string{}
	for _, n := range p.store.NodesByType(graph.NodeEvidence) {
		dim := n.Metadata.ParentDimension
		if dim == "" {
			dim = "unclustered"
		}
		clusters[dim] = append(clusters[dim], n.ID)
	}
	dims := make([]string, 0, len(clusters))
	for dim := range clusters {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	branches := fanOut(ctx, p.workers, dims, func(ctx context.Context, _ int, dim string) (string, error) {
		label := dim
		if node, ok := p.store.Node(dim); ok {
			label = node.Label
		}
		return p.reasoner.Reason(ctx, fmt.Sprintf(
			"Rate the importance of the %q evidence cluster to the research topic %q. "+
				"Answer with exactly one word: critical, high, moderate, low, or minimal.",
			label, rctx.Topic), llm.ModePlain)
	})

	ranking := make([]ClusterRank, 0, len(dims))
	for i, dim := range dims {
		importance := 0.5
		if br := branches[i]; br.err != nil {
			p.logger.Warn("cluster rating failed", zap.String("dimension", dim), zap.Error(br.err))
		} else {
			importance = importanceScore(br.value)
		}
		ranking = append(ranking, ClusterRank{
			Dimension:   dim,
			EvidenceIDs: clusters[dim],
			Importance:  importance,
			HighImpact:  importance >= p.cfg.HighImpactThreshold,
		})
		for _, id := range clusters[dim] {
			_ = p.store.UpdateNode(id, func(n *graph.Node) {
				n.Metadata.ImpactScore = importance
			})
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Importance > ranking[j].Importance
	})

	high := 0
	for _, r := range ranking {
		if r.HighImpact {
			high++
		}
	}
	return StageResult{
		Ranking: ranking,
		Narrative: fmt.Sprintf("Extracted %d evidence cluster(s), %d high-impact.",
			len(ranking), high),
	}, nil
}

// importanceRatings is ordered highest first; a reply naming several rating
// words resolves to the strongest one.
var importanceRatings = []struct {
	word  string
	score float64
}{
	{"critical", 1.0},
	{"high", 0.8},
	{"moderate", 0.6},
	{"low", 0.4},
	{"minimal", 0.2},
}

func importanceScore(reply string) float64 {
	word := strings.ToLower(strings.TrimSpace(reply))
	word = strings.Trim(word, ".!\"'")
	for _, r := range importanceRatings {
		if word == r.word {
			return r.score
		}
	}
	// Tolerate replies that bury the rating in a sentence.
	for _, r := range importanceRatings {
		if strings.Contains(word, r.word) {
			return r.score
		}
	}
	return 0.5
}
