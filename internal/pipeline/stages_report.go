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

var reportSections = []string{
	"Executive Summary",
	"Methodology",
	"Key Findings",
	"Evidence Analysis",
	"Discussion",
	"Conclusions",
}

var reflectionAspects = []string{
	"coherence",
	"scope",
	"methodological rigor",
	"evidence quality",
	"logical consistency",
	"bias",
	"completeness",
}

var finalComponents = []string{
	"Summary",
	"Findings",
	"Implications",
	"Future Directions",
	"Applications",
	"Limitations",
}

const sectionUnavailable = "(section unavailable: reasoner failure)"

// runComposition drafts the six report sections concurrently and assembles
// them in fixed order into a synthesis node. A failed section is marked
// unavailable in place so the report structure stays stable.
func (p *Pipeline) runComposition(ctx context.Context) (StageResult, error) {
	rctx := p.Context()
	digest := p.graphDigest()

	branches := fanOut(ctx, p.workers, reportSections, func(ctx context.Context, _ int, section string) (string, error) {
		return p.reasoner.Reason(ctx, fmt.Sprintf(
			"Write the %q section of a research report on %q.\n\n"+
				"Current state of the investigation:\n%s", section, rctx.Topic, digest),
			llm.ModePlain)
	})

	var sb strings.Builder
	failed := 0
	for i, section := range reportSections {
		fmt.Fprintf(&sb, "## %s\n\n", section)
		if br := branches[i]; br.err != nil {
			failed++
			sb.WriteString(sectionUnavailable)
			p.logger.Warn("section drafting failed", zap.String("section", section), zap.Error(br.err))
		} else {
			sb.WriteString(strings.TrimSpace(br.value))
		}
		sb.WriteString("\n\n")
	}
	report := strings.TrimSpace(sb.String())

	now := time.Now().UTC()
	node := graph.Node{
		ID:         "7.1",
		Label:      fmt.Sprintf("Draft report: %s", truncate(rctx.Topic, 60)),
		Type:       graph.NodeSynthesis,
		Confidence: []float64{0.7, 0.7, 0.7, 0.7},
		Metadata:   graph.Metadata{Notes: report},
		CreatedAt:  now,
	}
	edge := graph.Edge{
		ID:         edgeID(rootNodeID, node.ID),
		Source:     rootNodeID,
		Target:     node.ID,
		Type:       graph.EdgeSupportive,
		Confidence: 0.7,
		CreatedAt:  now,
	}
	if err := p.commit([]graph.Node{node}, []graph.Edge{edge}); err != nil {
		return StageResult{}, err
	}

	return StageResult{
		Nodes: []graph.Node{node},
		Edges: []graph.Edge{edge},
		Narrative: fmt.Sprintf("Composed draft report with %d section(s) (%d unavailable).",
			len(reportSections), failed),
	}, nil
}

type aspectAudit struct {
	Score   float64 `json:"score"`
	Issue   string  `json:"issue"`
	Comment string  `json:"comment"`
}

// runReflection audits the draft report across seven quality aspects and
// records the open issues as a knowledge node. Surviving hypotheses are
// re-arbitrated so the audit reflects the latest evidence weights.
func (p *Pipeline) runReflection(ctx context.Context) (StageResult, error) {
	draft, ok := p.store.Node("7.1")
	if !ok {
		return StageResult{}, fmt.Errorf("no draft report to reflect on")
	}

	branches := fanOut(ctx, p.workers, reflectionAspects, func(ctx context.Context, _ int, aspect string) (aspectAudit, error) {
		reply, err := p.reasoner.Reason(ctx, fmt.Sprintf(
			"Audit the %s of this research report:\n\n%s\n\n"+
				`Reply as {"score": 0.0, "issue": "", "comment": ""}`,
			aspect, truncate(draft.Metadata.Notes, 4000)), llm.ModeStructured)
		if err != nil {
			return aspectAudit{}, err
		}
		return common.ParseJSON[aspectAudit](reply)
	})

	quality := QualityReport{AspectScores: make(map[string]float64, len(reflectionAspects))}
	sum := 0.0
	for i, aspect := range reflectionAspects {
		score := 0.5
		if br := branches[i]; br.err != nil {
			p.logger.Warn("aspect audit failed", zap.String("aspect", aspect), zap.Error(br.err))
		} else {
			score = clamp01(br.value.Score)
			if issue := strings.TrimSpace(br.value.Issue); issue != "" {
				quality.Issues = append(quality.Issues, fmt.Sprintf("%s: %s", aspect, issue))
			}
		}
		quality.AspectScores[aspect] = score
		sum += score
	}
	quality.Overall = sum / float64(len(reflectionAspects))
	quality.IssueCount = len(quality.Issues)

	if hyps := p.store.NodesByType(graph.NodeHypothesis); len(hyps) >= 2 {
		if _, err := p.engine.Conduct(nodeIDs(hyps), competition.DefaultCriteria(), nil); err != nil {
			p.logger.Warn("reflection competition failed", zap.Error(err))
		}
	}
	landscape := p.engine.AnalyzeLandscape()

	now := time.Now().UTC()
	node := graph.Node{
		ID:    "8.1",
		Label: "Quality audit",
		Type:  graph.NodeKnowledge,
		Confidence: []float64{
			quality.Overall, quality.Overall, quality.Overall, quality.Overall,
		},
		Metadata:  graph.Metadata{Notes: strings.Join(quality.Issues, "\n")},
		CreatedAt: now,
	}
	edge := graph.Edge{
		ID:         edgeID(rootNodeID, node.ID),
		Source:     rootNodeID,
		Target:     node.ID,
		Type:       graph.EdgeSupportive,
		Confidence: quality.Overall,
		CreatedAt:  now,
	}
	if err := p.commit([]graph.Node{node}, []graph.Edge{edge}); err != nil {
		return StageResult{}, err
	}

	return StageResult{
		Nodes:   []graph.Node{node},
		Edges:   []graph.Edge{edge},
		Quality: &quality,
		Narrative: fmt.Sprintf(
			"Audited report quality %.2f with %d open issue(s); landscape shows %d cluster(s), %d conflict(s), %d gap(s).",
			quality.Overall, quality.IssueCount,
			len(landscape.Clusters), len(landscape.Conflicts), len(landscape.Gaps)),
	}, nil
}

// runFinal assembles the terminal analysis from six components and closes the
// run with a synthesis node linked back to the root.
func (p *Pipeline) runFinal(ctx context.Context) (StageResult, error) {
	rctx := p.Context()
	digest := p.graphDigest()
	verdict := p.finalVerdict()

	branches := fanOut(ctx, p.workers, finalComponents, func(ctx context.Context, _ int, component string) (string, error) {
		return p.reasoner.Reason(ctx, fmt.Sprintf(
			"Write the %q component of the final analysis of the research on %q.\n%s\n\n"+
				"Investigation state:\n%s", component, rctx.Topic, verdict, digest),
			llm.ModePlain)
	})

	var sb strings.Builder
	failed := 0
	for i, component := range finalComponents {
		fmt.Fprintf(&sb, "## %s\n\n", component)
		if br := branches[i]; br.err != nil {
			failed++
			sb.WriteString(sectionUnavailable)
			p.logger.Warn("component drafting failed", zap.String("component", component), zap.Error(br.err))
		} else {
			sb.WriteString(strings.TrimSpace(br.value))
		}
		sb.WriteString("\n\n")
	}
	analysis := strings.TrimSpace(sb.String())

	now := time.Now().UTC()
	node := graph.Node{
		ID:         "9.1",
		Label:      fmt.Sprintf("Final analysis: %s", truncate(rctx.Topic, 60)),
		Type:       graph.NodeSynthesis,
		Confidence: []float64{0.8, 0.8, 0.8, 0.8},
		Metadata:   graph.Metadata{Notes: analysis},
		CreatedAt:  now,
	}
	edge := graph.Edge{
		ID:         edgeID(rootNodeID, node.ID),
		Source:     rootNodeID,
		Target:     node.ID,
		Type:       graph.EdgeSupportive,
		Confidence: 0.8,
		CreatedAt:  now,
	}
	if err := p.commit([]graph.Node{node}, []graph.Edge{edge}); err != nil {
		return StageResult{}, err
	}

	return StageResult{
		Nodes: []graph.Node{node},
		Edges: []graph.Edge{edge},
		Narrative: fmt.Sprintf("Final analysis assembled from %d component(s) (%d unavailable). %s",
			len(finalComponents), failed, verdict),
	}, nil
}

// graphDigest renders the live graph as a compact outline for prompting.
func (p *Pipeline) graphDigest() string {
	var sb strings.Builder
	for _, n := range p.store.Nodes() {
		note := n.Metadata.Notes
		if n.Type == graph.NodeSynthesis {
			// Earlier drafts are too long to re-feed verbatim.
			note = ""
		}
		fmt.Fprintf(&sb, "- [%s] %s (confidence %.2f)", n.Type, n.Label, n.MeanConfidence())
		if note != "" {
			fmt.Fprintf(&sb, ": %s", truncate(note, 200))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// finalVerdict summarizes the last competition round, if any round ran.
func (p *Pipeline) finalVerdict() string {
	rounds := p.engine.Rounds()
	if len(rounds) == 0 {
		return "No hypothesis competition was conducted."
	}
	last := rounds[len(rounds)-1]
	if last.WinnerID == "" {
		return "The hypothesis competition produced no winner."
	}
	if h, ok := p.engine.Hypothesis(last.WinnerID); ok {
		return fmt.Sprintf("Leading hypothesis (margin %.2f): %s",
			last.Confidence, truncate(h.Description, 200))
	}
	return fmt.Sprintf("Leading hypothesis %s (margin %.2f).", last.WinnerID, last.Confidence)
}
