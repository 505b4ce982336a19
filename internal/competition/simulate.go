package competition

import (
	"math"

	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/evidence"
)

// Scenario is one what-if overlay for competition simulation.
type Scenario struct {
	Name string `json:"name"`
	// EvidenceOverrides temporarily replace evidence weights.
	EvidenceOverrides map[string]evidence.Weight `json:"evidence_overrides,omitempty"`
	// CriteriaOverrides temporarily replace individual criteria weights.
	CriteriaOverrides map[Criterion]float64 `json:"criteria_overrides,omitempty"`
}

// ScenarioOutcome captures one simulated round.
type ScenarioOutcome struct {
	Scenario   string  `json:"scenario"`
	WinnerID   string  `json:"winner_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Margin     float64 `json:"margin"`
	// Robustness is 1 minus the normalized variance of the participants'
	// overall scores under this scenario.
	Robustness float64 `json:"robustness"`
}

// Simulate re-runs the competition under each scenario's overlays and
// restores the evidence registry afterwards. Nothing is appended to the
// round history; the persistent state is untouched when Simulate returns.
func (e *Engine) Simulate(ids []string, criteria Criteria, scenarios []Scenario) ([]ScenarioOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Deferred restore runs before the unlock above, so no reader can
	// observe a scenario's overlaid weights.
	snapshot := e.evidence.Snapshot()
	defer e.evidence.Restore(snapshot)

	outcomes := make([]ScenarioOutcome, 0, len(scenarios))
	for _, sc := range scenarios {
		// Each scenario overlays onto the pristine snapshot, not onto the
		// previous scenario's leftovers.
		e.evidence.Restore(snapshot)
		for id, w := range sc.EvidenceOverrides {
			e.evidence.Set(id, w)
		}

		scenarioCriteria := overrideCriteria(criteria, sc.CriteriaOverrides)
		round, err := e.conductLocked(ids, scenarioCriteria)
		if err != nil {
			return nil, err
		}

		outcome := ScenarioOutcome{
			Scenario:   sc.Name,
			WinnerID:   round.WinnerID,
			Confidence: round.Confidence,
			Margin:     round.Confidence,
			Robustness: robustness(round.Results),
		}
		outcomes = append(outcomes, outcome)
	}

	e.logger.Debug("competition simulated",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("participants", len(ids)))
	return outcomes, nil
}

func overrideCriteria(base Criteria, overrides map[Criterion]float64) Criteria {
	if len(overrides) == 0 {
		return base
	}
	out := Criteria{Name: base.Name + "+overrides", Weights: make(map[Criterion]float64, len(base.Weights))}
	for c, w := range base.Weights {
		out.Weights[c] = w
	}
	for c, w := range overrides {
		out.Weights[c] = w
	}
	return out
}

// robustness = 1 − score variance normalized by the maximum variance of
// [0,1] values (0.25).
func robustness(results []Result) float64 {
	if len(results) < 2 {
		return 1
	}
	var sum float64
	for _, r := range results {
		sum += r.Overall
	}
	mean := sum / float64(len(results))

	var variance float64
	for _, r := range results {
		variance += (r.Overall - mean) * (r.Overall - mean)
	}
	variance /= float64(len(results))

	return math.Max(0, 1-variance/0.25)
}
