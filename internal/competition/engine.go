package competition

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/evidence"
)

// Engine holds the registered hypotheses, their competitor sets, and the
// ordered competition history. Scoring reads the shared evidence registry.
type Engine struct {
	mu       sync.RWMutex
	validate *validator.Validate
	logger   *zap.Logger
	evidence *evidence.Registry

	hypotheses map[string]*Hypothesis
	order      []string
	// competitors maps a hypothesis id to the ids it directly competes with:
	// same domain plus shared evidence or a shared related node.
	competitors map[string][]string

	rounds []Round
}

func NewEngine(reg *evidence.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		validate:    validator.New(),
		logger:      logger,
		evidence:    reg,
		hypotheses:  make(map[string]*Hypothesis),
		competitors: make(map[string][]string),
	}
}

// Register validates and stores a hypothesis, computes its competitor set,
// and returns an initial evaluation under the default criteria. A failed
// validation mutates nothing.
func (e *Engine) Register(h Hypothesis) (Evaluation, error) {
	if errs := e.validateHypothesis(h); len(errs) > 0 {
		return Evaluation{}, &ValidationError{HypothesisID: h.ID, Violations: errs}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.hypotheses[h.ID]; exists {
		return Evaluation{}, &ValidationError{
			HypothesisID: h.ID,
			Violations:   []string{"id: already registered"},
		}
	}

	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	stored := h
	e.hypotheses[h.ID] = &stored
	e.order = append(e.order, h.ID)
	e.recomputeCompetitors(h.ID)

	e.logger.Info("hypothesis registered",
		zap.String("id", h.ID),
		zap.Int("competitors", len(e.competitors[h.ID])))

	return e.evaluateLocked(&stored, DefaultCriteria()), nil
}

// Evaluate scores a registered hypothesis under the given criteria. The
// function is pure in its inputs: unchanged hypothesis, criteria, and
// evidence weights yield identical scores.
func (e *Engine) Evaluate(id string, criteria Criteria) (Evaluation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.hypotheses[id]
	if !ok {
		return Evaluation{}, fmt.Errorf("evaluate %s: %w", id, ErrHypothesisNotFound)
	}
	return e.evaluateLocked(h, criteria), nil
}

// Hypothesis returns a copy of a registered hypothesis.
func (e *Engine) Hypothesis(id string) (Hypothesis, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.hypotheses[id]
	if !ok {
		return Hypothesis{}, false
	}
	return *h, true
}

// Hypotheses returns copies of all registered hypotheses in registration order.
func (e *Engine) Hypotheses() []Hypothesis {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Hypothesis, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, *e.hypotheses[id])
	}
	return out
}

// Competitors returns the competing-hypothesis ids for id.
func (e *Engine) Competitors(id string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.competitors[id]...)
}

// Rounds returns the competition history, oldest first.
func (e *Engine) Rounds() []Round {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Round(nil), e.rounds...)
}

// AttachEvidence links an evidence id to a hypothesis's supporting set and
// refreshes competitor sets. Used by the evidence-integration stage.
func (e *Engine) AttachEvidence(hypothesisID, evidenceID string, supporting bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.hypotheses[hypothesisID]
	if !ok {
		return fmt.Errorf("attach evidence to %s: %w", hypothesisID, ErrHypothesisNotFound)
	}
	if supporting {
		h.SupportingEvidence = appendUnique(h.SupportingEvidence, evidenceID)
	} else {
		h.ContradictingEvidence = appendUnique(h.ContradictingEvidence, evidenceID)
	}
	e.recomputeCompetitors(hypothesisID)
	return nil
}

func (e *Engine) validateHypothesis(h Hypothesis) []string {
	err := e.validate.Struct(h)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: failed %q constraint", fe.Field(), fe.Tag()))
	}
	return out
}

// recomputeCompetitors refreshes the competitor set of id and of every
// hypothesis affected by it. Callers hold the writer lock.
func (e *Engine) recomputeCompetitors(id string) {
	subject := e.hypotheses[id]
	var mine []string
	for _, otherID := range e.order {
		if otherID == id {
			continue
		}
		other := e.hypotheses[otherID]
		if competes(subject, other) {
			mine = append(mine, otherID)
			e.competitors[otherID] = appendUnique(e.competitors[otherID], id)
		}
	}
	e.competitors[id] = mine
}

// competes: same domain AND (shared evidence OR shared related node).
func competes(a, b *Hypothesis) bool {
	if !sharesAny(a.Domain, b.Domain) {
		return false
	}
	if sharesAny(allEvidence(a), allEvidence(b)) {
		return true
	}
	return sharesAny(a.RelatedNodes, b.RelatedNodes)
}

func allEvidence(h *Hypothesis) []string {
	return append(append([]string(nil), h.SupportingEvidence...), h.ContradictingEvidence...)
}

func sharesAny(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if set[v] {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
