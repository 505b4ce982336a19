// Package server exposes the reasoning pipeline and the hypothesis
// competition engine over HTTP. Each run owns its own graph store, evidence
// registry, and engine; the server only routes and translates errors.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/config"
	"github.com/reasonlab/noesis/internal/driver"
	"github.com/reasonlab/noesis/internal/evidence"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
	"github.com/reasonlab/noesis/internal/pipeline"
)

type run struct {
	id        string
	pipeline  *pipeline.Pipeline
	engine    *competition.Engine
	createdAt time.Time
}

type Server struct {
	reasoner llm.Reasoner
	cfg      *config.Config
	exporter *driver.MemgraphDriver
	logger   *zap.Logger

	mu   sync.RWMutex
	runs map[string]*run
}

// NewServer wires a server around an already-constructed reasoner. The
// exporter may be nil when no Memgraph instance is configured.
func NewServer(reasoner llm.Reasoner, cfg *config.Config, exporter *driver.MemgraphDriver, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		reasoner: reasoner,
		cfg:      cfg,
		exporter: exporter,
		logger:   logger,
		runs:     make(map[string]*run),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/runs", s.CreateRun)
	r.POST("/runs/:id/stages/:stage", s.RunStage)
	r.POST("/runs/:id/run", s.RunAll)
	r.GET("/runs/:id/graph", s.Graph)
	r.GET("/runs/:id/context", s.Context)
	r.POST("/runs/:id/export", s.Export)

	r.POST("/runs/:id/hypotheses", s.RegisterHypothesis)
	r.GET("/runs/:id/hypotheses", s.ListHypotheses)
	r.POST("/runs/:id/hypotheses/:hid/evolve", s.EvolveHypothesis)
	r.POST("/runs/:id/competitions", s.ConductCompetition)
	r.GET("/runs/:id/competitions", s.ListCompetitions)
	r.POST("/runs/:id/consensus", s.BuildConsensus)
	r.GET("/runs/:id/landscape", s.Landscape)
	r.POST("/runs/:id/simulate", s.Simulate)

	return r
}

func (s *Server) newRun() *run {
	reg := evidence.NewRegistry()
	engine := competition.NewEngine(reg, s.logger)
	p := pipeline.New(graph.NewStore(), s.reasoner, engine, reg,
		s.cfg.Pipeline, s.cfg.Concurrency.StageWorkers, s.logger)
	return &run{
		id:        uuid.NewString(),
		pipeline:  p,
		engine:    engine,
		createdAt: time.Now().UTC(),
	}
}

func (s *Server) getRun(c *gin.Context) (*run, bool) {
	s.mu.RLock()
	r, ok := s.runs[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
	}
	return r, ok
}

func (s *Server) CreateRun(c *gin.Context) {
	r := s.newRun()
	s.mu.Lock()
	s.runs[r.id] = r
	s.mu.Unlock()

	s.logger.Info("run created", zap.String("run_id", r.id))
	c.JSON(http.StatusCreated, gin.H{"run_id": r.id, "created_at": r.createdAt})
}

type stageRequest struct {
	Task string `json:"task"`
}

func (s *Server) RunStage(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var stage int
	if err := stageParam(c.Param("stage"), &stage); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req stageRequest
	_ = c.ShouldBindJSON(&req)

	res, err := r.pipeline.RunStage(c.Request.Context(), stage, req.Task)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) RunAll(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Task == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task is required"})
		return
	}

	results, err := r.pipeline.Run(c.Request.Context(), req.Task)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) Graph(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	store := r.pipeline.Store()
	c.JSON(http.StatusOK, gin.H{
		"nodes": store.Nodes(),
		"edges": store.Edges(),
	})
}

func (s *Server) Context(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"context":         r.pipeline.Context(),
		"completed_stage": r.pipeline.CompletedStage(),
	})
}

func (s *Server) Export(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	if s.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no graph database configured"})
		return
	}
	if err := s.exporter.ExportRun(c.Request.Context(), r.id, r.pipeline.Store()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported", "run_id": r.id})
}

func (s *Server) RegisterHypothesis(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var h competition.Hypothesis
	if err := c.ShouldBindJSON(&h); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hypothesis payload"})
		return
	}
	eval, err := r.engine.Register(h)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, eval)
}

func (s *Server) ListHypotheses(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"hypotheses": r.engine.Hypotheses()})
}

func (s *Server) EvolveHypothesis(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var fb competition.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid feedback payload"})
		return
	}
	res, err := r.engine.Evolve(c.Param("hid"), fb)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type competitionRequest struct {
	HypothesisIDs  []string                   `json:"hypothesis_ids"`
	Criteria       *competition.Criteria      `json:"criteria,omitempty"`
	EvidenceUpdate map[string]evidence.Weight `json:"evidence_update,omitempty"`
}

func (s *Server) ConductCompetition(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var req competitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid competition payload"})
		return
	}
	criteria := competition.DefaultCriteria()
	if req.Criteria != nil {
		criteria = *req.Criteria
	}
	round, err := r.engine.Conduct(req.HypothesisIDs, criteria, req.EvidenceUpdate)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, round)
}

func (s *Server) ListCompetitions(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": r.engine.Rounds()})
}

type consensusRequest struct {
	HypothesisIDs []string              `json:"hypothesis_ids"`
	Mechanism     competition.Mechanism `json:"mechanism"`
}

func (s *Server) BuildConsensus(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var req consensusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consensus payload"})
		return
	}
	res, err := r.engine.BuildConsensus(req.HypothesisIDs, req.Mechanism)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) Landscape(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.engine.AnalyzeLandscape())
}

type simulateRequest struct {
	HypothesisIDs []string               `json:"hypothesis_ids"`
	Criteria      *competition.Criteria  `json:"criteria,omitempty"`
	Scenarios     []competition.Scenario `json:"scenarios"`
}

func (s *Server) Simulate(c *gin.Context) {
	r, ok := s.getRun(c)
	if !ok {
		return
	}
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid simulation payload"})
		return
	}
	criteria := competition.DefaultCriteria()
	if req.Criteria != nil {
		criteria = *req.Criteria
	}
	outcomes, err := r.engine.Simulate(req.HypothesisIDs, criteria, req.Scenarios)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		orderErr      *pipeline.StageOrderError
		validationErr *competition.ValidationError
		mechanismErr  *competition.UnsupportedMechanismError
		reasonerErr   *llm.ReasonerError
		danglingErr   *graph.DanglingEdgeError
		mergeErr      *graph.MergeConflictError
	)
	switch {
	case errors.As(err, &orderErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "violations": validationErr.Violations})
	case errors.As(err, &mechanismErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, competition.ErrHypothesisNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &reasonerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &danglingErr), errors.As(err, &mergeErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func stageParam(raw string, out *int) error {
	n, err := strconv.Atoi(raw)
	if err != nil || n < pipeline.StageInitialization || n > pipeline.StageCount {
		return errors.New("stage must be a number between 1 and 9")
	}
	*out = n
	return nil
}
