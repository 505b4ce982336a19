package competition

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// MechanismType names a consensus-seeking procedure.
type MechanismType string

const (
	MechanismBayesianUpdating  MechanismType = "bayesian_updating"
	MechanismDelphiMethod      MechanismType = "delphi_method"
	MechanismPredictionMarkets MechanismType = "prediction_markets"
	MechanismPeerReview        MechanismType = "peer_review"
)

// Mechanism configures a consensus attempt.
type Mechanism struct {
	Type          MechanismType `json:"type"`
	MaxIterations int           `json:"max_iterations"`
	// Threshold is the maximum spread between hypothesis scores at which the
	// set counts as converged. Defaults to 0.05.
	Threshold float64 `json:"threshold"`
}

// ConsensusResult reports the outcome of a consensus attempt.
type ConsensusResult struct {
	Mechanism   MechanismType      `json:"mechanism"`
	Reached     bool               `json:"reached"`
	Strength    float64            `json:"strength"`
	Iterations  int                `json:"iterations"`
	FinalScores map[string]float64 `json:"final_scores"`
}

// bayesianConsensusStrength is the fixed strength estimate reported by the
// Bayesian routine.
const bayesianConsensusStrength = 0.7

// BuildConsensus attempts consensus among the named hypotheses. Only
// bayesian_updating carries a concrete algorithm; the other declared
// mechanisms are extension points that return UnsupportedMechanismError
// until a real procedure is specified for each.
func (e *Engine) BuildConsensus(ids []string, m Mechanism) (ConsensusResult, error) {
	switch m.Type {
	case MechanismBayesianUpdating:
		return e.bayesianConsensus(ids, m)
	case MechanismDelphiMethod, MechanismPredictionMarkets, MechanismPeerReview:
		return ConsensusResult{}, &UnsupportedMechanismError{Mechanism: m.Type}
	default:
		return ConsensusResult{}, fmt.Errorf("unknown consensus mechanism %q", m.Type)
	}
}

// bayesianConsensus iteratively pulls each hypothesis's score toward the set
// mean until the spread falls under the threshold or iterations run out.
func (e *Engine) bayesianConsensus(ids []string, m Mechanism) (ConsensusResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if m.MaxIterations <= 0 {
		m.MaxIterations = 10
	}
	if m.Threshold <= 0 {
		m.Threshold = 0.05
	}

	scores := make(map[string]float64, len(ids))
	for _, id := range ids {
		h, ok := e.hypotheses[id]
		if !ok {
			return ConsensusResult{}, fmt.Errorf("build consensus with %s: %w", id, ErrHypothesisNotFound)
		}
		scores[id] = e.evaluateLocked(h, DefaultCriteria()).Overall
	}

	result := ConsensusResult{
		Mechanism:   MechanismBayesianUpdating,
		Strength:    bayesianConsensusStrength,
		FinalScores: scores,
	}
	if len(ids) < 2 {
		result.Reached = true
		return result, nil
	}

	const learningRate = 0.3
	for iter := 1; iter <= m.MaxIterations; iter++ {
		result.Iterations = iter

		var sum float64
		for _, id := range ids {
			sum += scores[id]
		}
		mean := sum / float64(len(ids))

		spread := 0.0
		for _, id := range ids {
			scores[id] += learningRate * (mean - scores[id])
			spread = math.Max(spread, math.Abs(scores[id]-mean))
		}

		if spread < m.Threshold {
			result.Reached = true
			break
		}
	}

	e.logger.Info("consensus attempt finished",
		zap.Bool("reached", result.Reached),
		zap.Int("iterations", result.Iterations))
	return result, nil
}
