package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/common"
	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
)

const rootNodeID = "1"

// runInitialization creates the single root node from the task description.
// This is the only stage where a reasoner failure aborts outright: without a
// framing there is nothing to degrade to, and no partial graph is committed.
func (p *Pipeline) runInitialization(ctx context.Context, task string) (StageResult, error) {
	if strings.TrimSpace(task) == "" {
		return StageResult{}, fmt.Errorf("empty research task")
	}

	prompt := fmt.Sprintf(
		"Frame the following research task. Identify the academic field, a concise topic title, "+
			"and 2-4 research objectives.\n\nTask: %s\n\n"+
			`Reply as {"field": "...", "topic": "...", "objectives": ["..."]}`, task)

	reply, err := p.reasoner.Reason(ctx, prompt, llm.ModeStructured)
	if err != nil {
		return StageResult{}, err
	}

	type framing struct {
		Field      string   `json:"field"`
		Topic      string   `json:"topic"`
		Objectives []string `json:"objectives"`
	}
	fr, perr := common.ParseJSON[framing](reply)
	if perr != nil || fr.Topic == "" {
		// A malformed framing still yields a usable root.
		fr = framing{Topic: truncate(task, 120)}
	}

	root := graph.Node{
		ID:         rootNodeID,
		Label:      fr.Topic,
		Type:       graph.NodeRoot,
		Confidence: []float64{0.9, 0.85, 0.8, 0.85},
		Metadata:   graph.Metadata{SourceDescription: "research task", Notes: task},
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.commit([]graph.Node{root}, nil); err != nil {
		return StageResult{}, err
	}

	p.setContext(func(rc *ResearchContext) {
		rc.Field = fr.Field
		rc.Topic = fr.Topic
		rc.Objectives = fr.Objectives
	})

	return StageResult{
		Nodes:     []graph.Node{root},
		Narrative: fmt.Sprintf("Initialized research on %q (field: %s).", fr.Topic, orUnknown(fr.Field)),
	}, nil
}

// runDecomposition analyzes each configured dimension independently. A
// failed dimension is committed with an empty analysis and a failure marker
// rather than blocking its siblings.
func (p *Pipeline) runDecomposition(ctx context.Context) (StageResult, error) {
	rctx := p.Context()

	branches := fanOut(ctx, p.workers, p.cfg.Dimensions, func(ctx context.Context, _ int, dim string) (string, error) {
		prompt := fmt.Sprintf(
			"Analyze the %q dimension of the research topic %q. "+
				"Summarize in 2-3 sentences what this dimension demands of the investigation.",
			dim, rctx.Topic)
		return p.reasoner.Reason(ctx, prompt, llm.ModePlain)
	})

	now := time.Now().UTC()
	nodes := make([]graph.Node, 0, len(p.cfg.Dimensions))
	edges := make([]graph.Edge, 0, len(p.cfg.Dimensions))
	failed := 0
	for i, dim := range p.cfg.Dimensions {
		node := graph.Node{
			ID:         fmt.Sprintf("2.%d", i+1),
			Label:      dim,
			Type:       graph.NodeDimension,
			Confidence: []float64{0.75, 0.7, 0.7, 0.7},
			CreatedAt:  now,
		}
		if br := branches[i]; br.err != nil {
			node.Metadata.ReasonerFailed = true
			failed++
			p.logger.Warn("dimension analysis failed", zap.String("dimension", dim), zap.Error(br.err))
		} else {
			node.Metadata.Notes = br.value
		}
		nodes = append(nodes, node)
		edges = append(edges, graph.Edge{
			ID:         edgeID(rootNodeID, node.ID),
			Source:     rootNodeID,
			Target:     node.ID,
			Type:       graph.EdgeSupportive,
			Confidence: 0.8,
			CreatedAt:  now,
		})
	}

	if err := p.commit(nodes, edges); err != nil {
		return StageResult{}, err
	}

	return StageResult{
		Nodes: nodes,
		Edges: edges,
		Narrative: fmt.Sprintf("Decomposed %q into %d dimensions (%d analysis failure(s)).",
			rctx.Topic, len(nodes), failed),
	}, nil
}

type proposedHypothesis struct {
	Description           string   `json:"description"`
	ExplanatoryPower      float64  `json:"explanatory_power"`
	Falsifiability        float64  `json:"falsifiability"`
	Simplicity            float64  `json:"simplicity"`
	Novelty               float64  `json:"novelty"`
	Testability           float64  `json:"testability"`
	Scope                 string   `json:"scope"`
	Domain                []string `json:"domain"`
	FalsificationCriteria string   `json:"falsification_criteria"`
}

// runHypotheses generates 2-3 hypotheses per dimension. Hypotheses trace to
// exactly one originating dimension so pruning and competition can follow
// lineage later.
func (p *Pipeline) runHypotheses(ctx context.Context) (StageResult, error) {
	rctx := p.Context()
	dims := p.store.NodesByType(graph.NodeDimension)
	if len(dims) == 0 {
		return StageResult{}, fmt.Errorf("no dimension nodes to hypothesize from")
	}

	branches := fanOut(ctx, p.workers, dims, func(ctx context.Context, _ int, dim graph.Node) ([]proposedHypothesis, error) {
		prompt := fmt.Sprintf(
			"Propose 2-%d competing hypotheses scoped to the %q dimension of the research topic %q.\n"+
				"Dimension analysis: %s\n\n"+
				`Reply as {"hypotheses": [{"description": "...", "explanatory_power": 0.0, `+
				`"falsifiability": 0.0, "simplicity": 0.0, "novelty": 0.0, "testability": 0.0, `+
				`"scope": "local|regional|global", "domain": ["..."], "falsification_criteria": "..."}]}`,
			p.cfg.HypothesesPerDimension, dim.Label, rctx.Topic, dim.Metadata.Notes)

		reply, err := p.reasoner.Reason(ctx, prompt, llm.ModeStructured)
		if err != nil {
			return nil, err
		}
		parsed, err := common.ParseJSON[struct {
			Hypotheses []proposedHypothesis `json:"hypotheses"`
		}](reply)
		if err != nil {
			return nil, err
		}
		return parsed.Hypotheses, nil
	})

	now := time.Now().UTC()
	var nodes []graph.Node
	var edges []graph.Edge
	var descriptions []string
	failed := 0

	for i, dim := range dims {
		br := branches[i]
		if br.err != nil {
			failed++
			p.logger.Warn("hypothesis generation failed",
				zap.String("dimension", dim.Label), zap.Error(br.err))
			continue
		}

		proposals := br.value
		if len(proposals) > p.cfg.HypothesesPerDimension {
			proposals = proposals[:p.cfg.HypothesesPerDimension]
		}

		lineage := strings.TrimPrefix(dim.ID, "2.")
		for k, prop := range proposals {
			id := fmt.Sprintf("3.%s.%d", lineage, k+1)
			hyp := competition.Hypothesis{
				ID:               id,
				Description:      prop.Description,
				ExplanatoryPower: clamp01(prop.ExplanatoryPower),
				Falsifiability:   clamp01(prop.Falsifiability),
				Simplicity:       clamp01(prop.Simplicity),
				Novelty:          clamp01(prop.Novelty),
				Testability:      clamp01(prop.Testability),
				Scope:            normalizeScope(prop.Scope),
				Domain:           prop.Domain,
				RelatedNodes:     []string{dim.ID},
				CreatedAt:        now,
			}
			if len(hyp.Domain) == 0 {
				hyp.Domain = []string{strings.ToLower(dim.Label)}
			}
			if _, err := p.engine.Register(hyp); err != nil {
				p.logger.Warn("hypothesis rejected", zap.String("id", id), zap.Error(err))
				continue
			}

			nodes = append(nodes, graph.Node{
				ID:    id,
				Label: truncate(prop.Description, 80),
				Type:  graph.NodeHypothesis,
				Confidence: []float64{
					hyp.ExplanatoryPower, hyp.Falsifiability, hyp.Testability, hyp.Simplicity,
				},
				Metadata: graph.Metadata{
					ParentDimension:       dim.ID,
					FalsificationCriteria: prop.FalsificationCriteria,
				},
				CreatedAt: now,
			})
			edges = append(edges, graph.Edge{
				ID:         edgeID(dim.ID, id),
				Source:     dim.ID,
				Target:     id,
				Type:       graph.EdgeSupportive,
				Confidence: 0.75,
				CreatedAt:  now,
			})
			descriptions = append(descriptions, prop.Description)
		}
	}

	if err := p.commit(nodes, edges); err != nil {
		return StageResult{}, err
	}
	p.setContext(func(rc *ResearchContext) {
		rc.Hypotheses = append(rc.Hypotheses, descriptions...)
	})

	// First arbitration as soon as a field of competitors exists.
	if ids := nodeIDs(nodes); len(ids) >= 2 {
		if _, err := p.engine.Conduct(ids, competition.DefaultCriteria(), nil); err != nil {
			p.logger.Warn("initial competition failed", zap.Error(err))
		}
	}

	return StageResult{
		Nodes: nodes,
		Edges: edges,
		Narrative: fmt.Sprintf("Generated %d hypotheses across %d dimensions (%d dimension failure(s)).",
			len(nodes), len(dims), failed),
	}, nil
}

func normalizeScope(s string) competition.Scope {
	switch competition.Scope(strings.ToLower(strings.TrimSpace(s))) {
	case competition.ScopeLocal:
		return competition.ScopeLocal
	case competition.ScopeGlobal:
		return competition.ScopeGlobal
	default:
		return competition.ScopeRegional
	}
}

func nodeIDs(nodes []graph.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
