package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/competition"
	"github.com/reasonlab/noesis/internal/driver"
	"github.com/reasonlab/noesis/internal/evidence"
	"github.com/reasonlab/noesis/internal/graph"
	"github.com/reasonlab/noesis/internal/llm"
	"github.com/reasonlab/noesis/internal/pipeline"
)

var runFlags struct {
	outputPath string
	jsonPath   string
	export     bool
}

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run the full nine-stage pipeline over a research task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.outputPath, "output", "o", "", "Write the final analysis (Markdown) to this path")
	f.StringVar(&runFlags.jsonPath, "json", "", "Write the per-stage results (JSON) to this path")
	f.BoolVar(&runFlags.export, "export", false, "Export the final graph to Memgraph")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := loadConfig(logger)
	task := strings.Join(args, " ")
	ctx := cmd.Context()

	reasoner, err := llm.NewFromConfig(ctx, cfg.LLM, cfg.Concurrency.StageWorkers)
	if err != nil {
		return fmt.Errorf("initialize reasoner: %w", err)
	}

	reg := evidence.NewRegistry()
	engine := competition.NewEngine(reg, logger)
	p := pipeline.New(graph.NewStore(), reasoner, engine, reg,
		cfg.Pipeline, cfg.Concurrency.StageWorkers, logger)

	results, err := p.Run(ctx, task)
	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "stage %d: %s\n", res.Stage, res.Narrative)
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if final, ok := p.Store().Node("9.1"); ok && runFlags.outputPath != "" {
		report := fmt.Sprintf("# %s\n\n%s\n", p.Context().Topic, final.Metadata.Notes)
		if err := os.WriteFile(runFlags.outputPath, []byte(report), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "final analysis written to %s\n", runFlags.outputPath)
	}

	if runFlags.jsonPath != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(runFlags.jsonPath, data, 0o644); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}

	if runFlags.export {
		if cfg.Memgraph.URI == "" {
			return fmt.Errorf("--export requires a configured memgraph uri")
		}
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			return fmt.Errorf("connect memgraph: %w", err)
		}
		defer d.Close(ctx)
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("index build failed", zap.Error(err))
		}
		runID := uuid.NewString()
		if err := d.ExportRun(ctx, runID, p.Store()); err != nil {
			return fmt.Errorf("export run: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "graph exported as run %s\n", runID)
	}
	return nil
}
