// Package competition implements the hypothesis competition engine: it
// registers competing hypotheses, scores them against weighted criteria
// backed by the evidence registry, ranks them in arbitration rounds, evolves
// them under feedback, and analyzes the overall hypothesis landscape.
package competition

import "time"

// Scope is the explanatory reach a hypothesis claims.
type Scope string

const (
	ScopeLocal    Scope = "local"
	ScopeRegional Scope = "regional"
	ScopeGlobal   Scope = "global"
)

// Criterion names one axis of the evaluation vector.
type Criterion string

const (
	CriterionEmpiricalSupport     Criterion = "empirical_support"
	CriterionTheoreticalCoherence Criterion = "theoretical_coherence"
	CriterionExplanatoryPower     Criterion = "explanatory_power"
	CriterionPredictivePower      Criterion = "predictive_power"
	CriterionFalsifiability       Criterion = "falsifiability"
	CriterionSimplicity           Criterion = "simplicity"
	CriterionNovelty              Criterion = "novelty"
	CriterionScope                Criterion = "scope"
)

// AllCriteria lists the eight criteria in canonical order.
var AllCriteria = []Criterion{
	CriterionEmpiricalSupport,
	CriterionTheoreticalCoherence,
	CriterionExplanatoryPower,
	CriterionPredictivePower,
	CriterionFalsifiability,
	CriterionSimplicity,
	CriterionNovelty,
	CriterionScope,
}

// PeerEvaluation is one entry in a hypothesis's peer-review log.
type PeerEvaluation struct {
	Evaluator  string    `json:"evaluator"`
	Score      float64   `json:"score"`
	Criterion  Criterion `json:"criterion"`
	Suggestion string    `json:"suggestion,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EvolutionStep records one feedback-driven revision of a hypothesis.
type EvolutionStep struct {
	Modifications []string  `json:"modifications"`
	ScoreBefore   float64   `json:"score_before"`
	ScoreAfter    float64   `json:"score_after"`
	Timestamp     time.Time `json:"timestamp"`
}

// Hypothesis is a competing explanatory claim. The trait scalars live in
// [0,1]; the validate tags drive Register's input checking.
type Hypothesis struct {
	ID                    string   `json:"id" validate:"required"`
	Description           string   `json:"description" validate:"required,min=10"`
	SupportingEvidence    []string `json:"supporting_evidence,omitempty"`
	ContradictingEvidence []string `json:"contradicting_evidence,omitempty"`
	RelatedNodes          []string `json:"related_nodes,omitempty"`

	ExplanatoryPower float64 `json:"explanatory_power" validate:"gte=0,lte=1"`
	Falsifiability   float64 `json:"falsifiability" validate:"gte=0,lte=1"`
	Simplicity       float64 `json:"simplicity" validate:"gte=0,lte=1"`
	Novelty          float64 `json:"novelty" validate:"gte=0,lte=1"`
	Testability      float64 `json:"testability" validate:"gte=0,lte=1"`

	Scope  Scope    `json:"scope" validate:"oneof=local regional global"`
	Domain []string `json:"domain" validate:"required,min=1"`

	Confidence      float64          `json:"confidence"`
	PeerEvaluations []PeerEvaluation `json:"peer_evaluations,omitempty"`
	Evolution       []EvolutionStep  `json:"evolution,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Criteria is a named weight map over the evaluation criteria. Weights need
// not sum to 1; the scorer normalizes by the total.
type Criteria struct {
	Name    string                `json:"name"`
	Weights map[Criterion]float64 `json:"weights"`
}

// DefaultCriteria weights empirical grounding and explanatory reach ahead of
// parsimony and novelty.
func DefaultCriteria() Criteria {
	return Criteria{
		Name: "default",
		Weights: map[Criterion]float64{
			CriterionEmpiricalSupport:     0.25,
			CriterionTheoreticalCoherence: 0.15,
			CriterionExplanatoryPower:     0.20,
			CriterionPredictivePower:      0.15,
			CriterionFalsifiability:       0.10,
			CriterionSimplicity:           0.05,
			CriterionNovelty:              0.05,
			CriterionScope:                0.05,
		},
	}
}

// Evaluation is the scored view of one hypothesis under one criteria set.
type Evaluation struct {
	HypothesisID string                `json:"hypothesis_id"`
	Scores       map[Criterion]float64 `json:"scores"`
	Overall      float64               `json:"overall"`
	Strengths    []Criterion           `json:"strengths,omitempty"`
	Weaknesses   []Criterion           `json:"weaknesses,omitempty"`
	Suggestions  []string              `json:"suggestions,omitempty"`
}

// Result is one ranked entry of a competition round. Ranks are dense: tied
// overall scores share a rank.
type Result struct {
	HypothesisID string                `json:"hypothesis_id"`
	Rank         int                   `json:"rank"`
	Overall      float64               `json:"overall"`
	Scores       map[Criterion]float64 `json:"scores"`
}

// Round is the immutable record of one arbitration. Confidence is the score
// margin between ranks 1 and 2; zero means there was no real contest.
type Round struct {
	ID            string    `json:"id"`
	HypothesisIDs []string  `json:"hypothesis_ids"`
	Criteria      Criteria  `json:"criteria"`
	Results       []Result  `json:"results"`
	WinnerID      string    `json:"winner_id,omitempty"`
	Confidence    float64   `json:"confidence"`
	Rationale     string    `json:"rationale"`
	Timestamp     time.Time `json:"timestamp"`
}
