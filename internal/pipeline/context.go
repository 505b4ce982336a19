// Package pipeline drives the nine-stage research reasoning pipeline. Each
// stage reads the graph left by its predecessor, consults the reasoner, and
// commits a single atomic delta of nodes and edges.
package pipeline

import (
	"fmt"

	"github.com/reasonlab/noesis/internal/graph"
)

// ResearchContext is the evolving record of what the run is about.
type ResearchContext struct {
	Field      string   `json:"field"`
	Topic      string   `json:"topic"`
	Objectives []string `json:"objectives,omitempty"`
	Hypotheses []string `json:"hypotheses,omitempty"`
}

// ClusterRank is one entry of the stage-6 evidence-cluster ranking.
type ClusterRank struct {
	Dimension   string   `json:"dimension"`
	EvidenceIDs []string `json:"evidence_ids"`
	Importance  float64  `json:"importance"`
	HighImpact  bool     `json:"high_impact"`
}

// QualityReport is the stage-8 audit outcome.
type QualityReport struct {
	AspectScores map[string]float64 `json:"aspect_scores"`
	Overall      float64            `json:"overall"`
	IssueCount   int                `json:"issue_count"`
	Issues       []string           `json:"issues,omitempty"`
}

// StageResult is what a stage hands back to the caller: the committed graph
// delta, the updated context, and a human-readable narrative. Ranking and
// Quality are set only by stages 6 and 8 respectively.
type StageResult struct {
	Stage     int             `json:"stage"`
	Nodes     []graph.Node    `json:"nodes,omitempty"`
	Edges     []graph.Edge    `json:"edges,omitempty"`
	Context   ResearchContext `json:"context"`
	Narrative string          `json:"narrative"`
	Ranking   []ClusterRank   `json:"ranking,omitempty"`
	Quality   *QualityReport  `json:"quality,omitempty"`
}

// StageOrderError rejects a stage run that violates the strict 1→9 order.
type StageOrderError struct {
	Requested int
	Completed int
}

func (e *StageOrderError) Error() string {
	return fmt.Sprintf("stage %d cannot run: last completed stage is %d", e.Requested, e.Completed)
}
