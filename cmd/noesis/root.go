package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/config"
)

var rootFlags struct {
	configPath string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:           "noesis",
	Short:         "Graph-of-thoughts research reasoning pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "config/config.toml", "Path to TOML config file")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
}

func loadConfig(logger *zap.Logger) *config.Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found")
	}
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		logger.Debug("config file not loaded, using defaults",
			zap.String("path", rootFlags.configPath), zap.Error(err))
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	return cfg
}

func newLogger() (*zap.Logger, error) {
	if rootFlags.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
