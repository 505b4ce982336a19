package graph

import "time"

type EdgeType string

const (
	EdgeSupportive         EdgeType = "supportive"
	EdgeContradictory      EdgeType = "contradictory"
	EdgeCausalDirect       EdgeType = "causal_direct"
	EdgeTemporalPrecedence EdgeType = "temporal_precedence"
)

// Edge connects two nodes. Both endpoints must exist (and be unpruned) at
// insertion time; the store enforces this.
type Edge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       EdgeType       `json:"type"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
