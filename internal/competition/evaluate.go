package competition

import "sort"

// scope tier multipliers for the scope criterion.
var scopeMultiplier = map[Scope]float64{
	ScopeGlobal:   1.0,
	ScopeRegional: 0.7,
	ScopeLocal:    0.4,
}

var improvementActions = map[Criterion]string{
	CriterionEmpiricalSupport:     "seek additional empirical evidence",
	CriterionTheoreticalCoherence: "reconcile the claim with established theory",
	CriterionExplanatoryPower:     "broaden the range of observations the claim accounts for",
	CriterionPredictivePower:      "derive testable predictions from the claim",
	CriterionFalsifiability:       "state concrete conditions that would falsify the claim",
	CriterionSimplicity:           "remove auxiliary assumptions from the claim",
	CriterionNovelty:              "differentiate the claim from prior explanations",
	CriterionScope:                "extend the claim beyond its current domain",
}

// evaluateLocked computes the eight criterion scores and the weighted
// overall. Callers hold at least the read lock.
func (e *Engine) evaluateLocked(h *Hypothesis, criteria Criteria) Evaluation {
	scores := map[Criterion]float64{
		CriterionEmpiricalSupport:     e.empiricalSupport(h),
		CriterionTheoreticalCoherence: peerMean(h, CriterionTheoreticalCoherence),
		CriterionExplanatoryPower:     h.ExplanatoryPower,
		CriterionFalsifiability:       h.Falsifiability,
		CriterionSimplicity:           h.Simplicity,
		CriterionNovelty:              h.Novelty,
		CriterionScope:                scopeScore(h),
	}
	scores[CriterionPredictivePower] = (h.Testability + scores[CriterionScope]) / 2

	ev := Evaluation{
		HypothesisID: h.ID,
		Scores:       scores,
		Overall:      overallScore(scores, criteria),
	}

	for _, c := range AllCriteria {
		switch s := scores[c]; {
		case s >= 0.7:
			ev.Strengths = append(ev.Strengths, c)
		case s <= 0.3:
			ev.Weaknesses = append(ev.Weaknesses, c)
			ev.Suggestions = append(ev.Suggestions, improvementActions[c])
		}
	}
	return ev
}

// empiricalSupport is the evidence balance: supporting minus contradicting
// weight×reliability over the total evidence weight, clamped at zero.
// Hypotheses with no evidence at all score a neutral 0.5.
func (e *Engine) empiricalSupport(h *Hypothesis) float64 {
	if len(h.SupportingEvidence) == 0 && len(h.ContradictingEvidence) == 0 {
		return 0.5
	}

	var supporting, contradicting, total float64
	for _, id := range h.SupportingEvidence {
		w := e.evidence.Get(id)
		supporting += w.Weight * w.Reliability
		total += w.Weight
	}
	for _, id := range h.ContradictingEvidence {
		w := e.evidence.Get(id)
		contradicting += w.Weight * w.Reliability
		total += w.Weight
	}
	if total == 0 {
		return 0.5
	}

	score := (supporting - contradicting) / total
	if score < 0 {
		return 0
	}
	return score
}

// peerMean averages the peer-evaluation scores tagged with criterion,
// defaulting to 0.5 when there are none.
func peerMean(h *Hypothesis, criterion Criterion) float64 {
	var sum float64
	var n int
	for _, pe := range h.PeerEvaluations {
		if pe.Criterion == criterion {
			sum += pe.Score
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// scopeScore scales the scope-tier multiplier by domain breadth, saturating
// at five domain tags.
func scopeScore(h *Hypothesis) float64 {
	breadth := float64(len(h.Domain)) / 5
	if breadth > 1 {
		breadth = 1
	}
	return scopeMultiplier[h.Scope] * breadth
}

// overallScore is the weighted average normalized by total weight, so weight
// sets that do not sum to 1 still produce a score bounded by the max
// criterion score.
func overallScore(scores map[Criterion]float64, criteria Criteria) float64 {
	var weighted, total float64

	// Deterministic iteration keeps float accumulation identical across calls.
	keys := make([]string, 0, len(criteria.Weights))
	for c := range criteria.Weights {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)

	for _, k := range keys {
		c := Criterion(k)
		w := criteria.Weights[c]
		if w <= 0 {
			continue
		}
		weighted += scores[c] * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
