package competition

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/evidence"
)

// Conduct arbitrates between the named hypotheses: it optionally applies an
// evidence-weight update first, evaluates every participant, ranks them by
// descending overall score (insertion order breaks ties, ranks are dense),
// and appends an immutable Round to the history. An empty id set yields a
// round with no winner.
func (e *Engine) Conduct(ids []string, criteria Criteria, evidenceUpdate map[string]evidence.Weight) (Round, error) {
	for id, w := range evidenceUpdate {
		e.evidence.Set(id, w)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.conductLocked(ids, criteria)
	if err != nil {
		return Round{}, err
	}
	e.rounds = append(e.rounds, round)

	e.logger.Info("competition round recorded",
		zap.String("round", round.ID),
		zap.String("winner", round.WinnerID),
		zap.Float64("confidence", round.Confidence))
	return round, nil
}

// conductLocked evaluates and ranks without touching the history, so the
// scenario simulator can reuse it side-effect-free. Callers hold the writer
// lock.
func (e *Engine) conductLocked(ids []string, criteria Criteria) (Round, error) {
	round := Round{
		ID:            uuid.New().String(),
		HypothesisIDs: append([]string(nil), ids...),
		Criteria:      criteria,
		Timestamp:     time.Now().UTC(),
	}

	if len(ids) == 0 {
		round.Rationale = "no hypotheses to arbitrate"
		return round, nil
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		h, ok := e.hypotheses[id]
		if !ok {
			return Round{}, fmt.Errorf("conduct competition with %s: %w", id, ErrHypothesisNotFound)
		}
		ev := e.evaluateLocked(h, criteria)
		results = append(results, Result{
			HypothesisID: id,
			Overall:      ev.Overall,
			Scores:       ev.Scores,
		})
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Overall > results[j].Overall
	})

	rank := 1
	for i := range results {
		if i > 0 && results[i].Overall < results[i-1].Overall {
			rank++
		}
		results[i].Rank = rank
	}
	round.Results = results

	round.WinnerID = results[0].HypothesisID
	if len(results) >= 2 {
		round.Confidence = results[0].Overall - results[1].Overall
	}
	round.Rationale = fmt.Sprintf(
		"%s ranked first with overall score %.3f under criteria %q (margin %.3f over %d rival(s))",
		round.WinnerID, results[0].Overall, criteria.Name, round.Confidence, len(results)-1)

	return round, nil
}
