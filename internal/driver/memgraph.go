package driver

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/graph"
)

type MemgraphDriver struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewMemgraphDriver(ctx context.Context, uri, username, password string, logger *zap.Logger) (*MemgraphDriver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	logger.Info("connected to memgraph", zap.String("uri", uri))
	return &MemgraphDriver{driver: d, logger: logger}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Thought(id);",
		"CREATE INDEX ON :Thought(run_id);",
		"CREATE INDEX ON :Thought(type);",
	}
	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist.
			d.logger.Warn("index creation failed", zap.String("query", q), zap.Error(err))
		}
	}
	return nil
}

// ExportRun replaces the stored snapshot of runID with the live nodes and
// edges of the store. Pruned nodes are not exported.
func (d *MemgraphDriver) ExportRun(ctx context.Context, runID string, store *graph.Store) error {
	if _, err := d.ExecuteQuery(ctx, DeleteRunQuery, map[string]interface{}{"run_id": runID}); err != nil {
		return fmt.Errorf("clear run %s: %w", runID, err)
	}

	nodes := store.Nodes()
	for _, n := range nodes {
		params := map[string]interface{}{
			"id":                 n.ID,
			"run_id":             runID,
			"label":              n.Label,
			"type":               string(n.Type),
			"confidence":         n.Confidence,
			"mean_confidence":    n.MeanConfidence(),
			"notes":              n.Metadata.Notes,
			"source_description": n.Metadata.SourceDescription,
			"parent_dimension":   n.Metadata.ParentDimension,
			"impact_score":       n.Metadata.ImpactScore,
			"created_at":         n.CreatedAt.UTC(),
		}
		if _, err := d.ExecuteQuery(ctx, SaveThoughtNodeQuery, params); err != nil {
			return fmt.Errorf("save node %s: %w", n.ID, err)
		}
	}

	edges := store.Edges()
	for _, e := range edges {
		params := map[string]interface{}{
			"id":         e.ID,
			"run_id":     runID,
			"source_id":  e.Source,
			"target_id":  e.Target,
			"type":       string(e.Type),
			"confidence": e.Confidence,
			"created_at": e.CreatedAt.UTC(),
		}
		if _, err := d.ExecuteQuery(ctx, SaveThoughtEdgeQuery, params); err != nil {
			return fmt.Errorf("save edge %s: %w", e.ID, err)
		}
	}

	d.logger.Info("exported run",
		zap.String("run_id", runID),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)))
	return nil
}
