package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/config"
	"github.com/reasonlab/noesis/internal/driver"
	"github.com/reasonlab/noesis/internal/llm"
	"github.com/reasonlab/noesis/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config file not loaded, using defaults", zap.String("path", cfgPath), zap.Error(err))
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	ctx := context.Background()
	reasoner, err := llm.NewFromConfig(ctx, cfg.LLM, cfg.Concurrency.StageWorkers)
	if err != nil {
		logger.Fatal("reasoner initialization failed", zap.Error(err))
	}

	var exporter *driver.MemgraphDriver
	if cfg.Memgraph.URI != "" {
		exporter, err = driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			logger.Warn("memgraph unavailable, export disabled", zap.Error(err))
			exporter = nil
		} else {
			defer exporter.Close(ctx)
			if err := exporter.BuildIndices(ctx); err != nil {
				logger.Warn("index build failed", zap.Error(err))
			}
		}
	}

	srv := server.NewServer(reasoner, cfg, exporter, logger)
	r := srv.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Info("starting server", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
