package graph

import "time"

type NodeType string

const (
	NodeRoot       NodeType = "root"
	NodeDimension  NodeType = "dimension"
	NodeHypothesis NodeType = "hypothesis"
	NodeEvidence   NodeType = "evidence"
	NodeSynthesis  NodeType = "synthesis"
	NodeKnowledge  NodeType = "knowledge"
)

// Metadata carries the stage annotations written onto nodes. The well-known
// keys are typed fields; anything stage-specific beyond them goes into Extra.
type Metadata struct {
	SourceDescription     string         `json:"source_description,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	FalsificationCriteria string         `json:"falsification_criteria,omitempty"`
	ImpactScore           float64        `json:"impact_score,omitempty"`
	ParentDimension       string         `json:"parent_dimension,omitempty"`
	Pruned                bool           `json:"pruned,omitempty"`
	MergedInto            string         `json:"merged_into,omitempty"`
	ReasonerFailed        bool           `json:"reasoner_failed,omitempty"`
	Extra                 map[string]any `json:"extra,omitempty"`
}

// Node is a vertex of the research graph. IDs are stage-scoped lineage
// strings, e.g. "3.2.1" is the first hypothesis under the second dimension.
type Node struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Type       NodeType  `json:"type"`
	Confidence []float64 `json:"confidence"`
	Metadata   Metadata  `json:"metadata"`
	CreatedAt  time.Time `json:"created_at"`
}

// MeanConfidence reduces the confidence vector to a scalar. Every threshold
// decision in the pipeline (pruning, ranking displays) uses this reduction.
func (n Node) MeanConfidence() float64 {
	if len(n.Confidence) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range n.Confidence {
		sum += c
	}
	return sum / float64(len(n.Confidence))
}
