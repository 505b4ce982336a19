package competition

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Feedback drives one evolution step of a hypothesis.
type Feedback struct {
	// CriteriaScores are the reviewer's per-criterion verdicts; every
	// criterion under 0.5 triggers a templated improvement action.
	CriteriaScores map[Criterion]float64 `json:"criteria_scores"`
	// NewEvidence lists supporting evidence ids cited by the feedback.
	NewEvidence []string `json:"new_evidence,omitempty"`
	// PeerReviews are appended to the hypothesis's peer-evaluation log.
	// A review's suggestion is adopted only when its score is at least 0.7.
	PeerReviews []PeerEvaluation `json:"peer_reviews,omitempty"`
}

// EvolveResult reports the evolved hypothesis, the textual modifications
// applied, and the overall-score delta under the default criteria.
type EvolveResult struct {
	Hypothesis    Hypothesis `json:"hypothesis"`
	Modifications []string   `json:"modifications"`
	ScoreDelta    float64    `json:"score_delta"`
}

// Evolve applies feedback to a hypothesis in place, producing a new version
// with an appended evolution step. The confidence bump is a deliberately
// simple placeholder policy: min(1, confidence+0.1), not evidence-driven.
func (e *Engine) Evolve(id string, fb Feedback) (EvolveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.hypotheses[id]
	if !ok {
		return EvolveResult{}, fmt.Errorf("evolve %s: %w", id, ErrHypothesisNotFound)
	}

	before := e.evaluateLocked(h, DefaultCriteria()).Overall

	var mods []string
	for _, c := range AllCriteria {
		score, present := fb.CriteriaScores[c]
		if present && score < 0.5 {
			mods = append(mods, improvementActions[c])
		}
	}

	for _, ev := range fb.NewEvidence {
		merged := appendUnique(h.SupportingEvidence, ev)
		if len(merged) != len(h.SupportingEvidence) {
			mods = append(mods, fmt.Sprintf("cited new evidence %s", ev))
		}
		h.SupportingEvidence = merged
	}

	for _, review := range fb.PeerReviews {
		if review.Timestamp.IsZero() {
			review.Timestamp = time.Now().UTC()
		}
		h.PeerEvaluations = append(h.PeerEvaluations, review)
		if review.Score >= 0.7 && review.Suggestion != "" {
			mods = append(mods, fmt.Sprintf("adopted reviewer suggestion: %s", review.Suggestion))
		}
	}

	h.Confidence = h.Confidence + 0.1
	if h.Confidence > 1 {
		h.Confidence = 1
	}

	e.recomputeCompetitors(id)
	after := e.evaluateLocked(h, DefaultCriteria()).Overall

	h.Evolution = append(h.Evolution, EvolutionStep{
		Modifications: mods,
		ScoreBefore:   before,
		ScoreAfter:    after,
		Timestamp:     time.Now().UTC(),
	})

	e.logger.Info("hypothesis evolved",
		zap.String("id", id),
		zap.Int("modifications", len(mods)),
		zap.Float64("score_delta", after-before))

	return EvolveResult{
		Hypothesis:    *h,
		Modifications: mods,
		ScoreDelta:    after - before,
	}, nil
}
