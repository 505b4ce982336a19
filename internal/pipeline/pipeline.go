package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/config"
	"github.com/reasonlab/noesis/internal/evidence"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
)

const (
	StageInitialization = 1 + iota
	StageDecomposition
	StageHypotheses
	StageEvidence
	StagePruning
	StageExtraction
	StageComposition
	StageReflection
	StageFinal

	StageCount = StageFinal
)

// Pipeline owns one research run: the graph store, the research context, and
// the stage cursor. Sub-task generation fans out concurrently; every graph
// mutation happens in a single short commit per stage.
type Pipeline struct {
	store    *graph.Store
	reasoner llm.Reasoner
	engine   *competition.Engine
	weights  *evidence.Registry
	cfg      config.PipelineConfig
	workers  int
	logger   *zap.Logger

	mu        sync.Mutex
	completed int
	rctx      ResearchContext
}

func New(store *graph.Store, reasoner llm.Reasoner, engine *competition.Engine,
	weights *evidence.Registry, cfg config.PipelineConfig, workers int, logger *zap.Logger) *Pipeline {
	if workers < 1 {
		workers = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		reasoner: reasoner,
		engine:   engine,
		weights:  weights,
		cfg:      cfg,
		workers:  workers,
		logger:   logger,
	}
}

// Store exposes the read-only graph snapshot accessors for export/rendering.
func (p *Pipeline) Store() *graph.Store { return p.store }

// Context returns the current research context.
func (p *Pipeline) Context() ResearchContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rctx
}

// CompletedStage returns the index of the last committed stage (0 = none).
func (p *Pipeline) CompletedStage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// RunStage executes one stage. Stages run strictly in order: the request is
// rejected with StageOrderError unless stage == CompletedStage()+1. A stage
// either commits its whole graph delta or none of it.
func (p *Pipeline) RunStage(ctx context.Context, stage int, userInput string) (StageResult, error) {
	p.mu.Lock()
	if stage < StageInitialization || stage > StageCount || stage != p.completed+1 {
		completed := p.completed
		p.mu.Unlock()
		return StageResult{}, &StageOrderError{Requested: stage, Completed: completed}
	}
	rctx := p.rctx
	p.mu.Unlock()

	p.logger.Info("running stage", zap.Int("stage", stage), zap.String("topic", rctx.Topic))
	start := time.Now()

	var res StageResult
	var err error
	switch stage {
	case StageInitialization:
		res, err = p.runInitialization(ctx, userInput)
	case StageDecomposition:
		res, err = p.runDecomposition(ctx)
	case StageHypotheses:
		res, err = p.runHypotheses(ctx)
	case StageEvidence:
		res, err = p.runEvidence(ctx)
	case StagePruning:
		res, err = p.runPruning(ctx)
	case StageExtraction:
		res, err = p.runExtraction(ctx)
	case StageComposition:
		res, err = p.runComposition(ctx)
	case StageReflection:
		res, err = p.runReflection(ctx)
	case StageFinal:
		res, err = p.runFinal(ctx)
	}
	if err != nil {
		return StageResult{}, fmt.Errorf("stage %d: %w", stage, err)
	}

	p.mu.Lock()
	p.completed = stage
	res.Context = p.rctx
	p.mu.Unlock()

	res.Stage = stage
	p.logger.Info("stage committed",
		zap.Int("stage", stage),
		zap.Int("nodes", len(res.Nodes)),
		zap.Int("edges", len(res.Edges)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// Run executes all nine stages in order.
func (p *Pipeline) Run(ctx context.Context, task string) ([]StageResult, error) {
	results := make([]StageResult, 0, StageCount)
	for stage := StageInitialization; stage <= StageCount; stage++ {
		input := ""
		if stage == StageInitialization {
			input = task
		}
		res, err := p.RunStage(ctx, stage, input)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Rewind discards the output of stage and everything after it, so the stage
// can be re-run. Discarding prunes the affected nodes (and their edges) by
// their stage-scoped id prefix.
func (p *Pipeline) Rewind(stage int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if stage < StageInitialization || stage > p.completed {
		return &StageOrderError{Requested: stage, Completed: p.completed}
	}
	p.store.PruneNodes(func(n graph.Node) bool {
		return nodeStage(n.ID) >= stage
	})
	p.completed = stage - 1
	return nil
}

// commit applies a stage's delta as one atomic mutation: all nodes, then all
// edges. Edge construction from just-created node ids keeps the batch valid.
func (p *Pipeline) commit(nodes []graph.Node, edges []graph.Edge) error {
	if len(nodes) > 0 {
		if err := p.store.AddNodes(nodes...); err != nil {
			return fmt.Errorf("commit nodes: %w", err)
		}
	}
	if len(edges) > 0 {
		if err := p.store.AddEdges(edges...); err != nil {
			return fmt.Errorf("commit edges: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) setContext(fn func(*ResearchContext)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.rctx)
}

// nodeStage extracts the leading stage number of a lineage id like "3.2.1".
func nodeStage(id string) int {
	head, _, _ := strings.Cut(id, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

func edgeID(source, target string) string {
	return "e" + source + "-" + target
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
