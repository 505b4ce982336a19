package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Retries  int    `toml:"retries"`
}

type PipelineConfig struct {
	Dimensions             []string `toml:"dimensions"`
	HypothesesPerDimension int      `toml:"hypotheses_per_dimension"`
	PruneThreshold         float64  `toml:"prune_threshold"`
	HighImpactThreshold    float64  `toml:"high_impact_threshold"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ConcurrencyConfig struct {
	StageWorkers int `toml:"stage_workers"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "gpt-oss:latest",
			BaseURL:  "http://localhost:11434",
			Retries:  3,
		},
		Pipeline: PipelineConfig{
			Dimensions: []string{
				"Scope", "Objectives", "Constraints", "Data Needs",
				"Use Cases", "Biases", "Knowledge Gaps",
			},
			HypothesesPerDimension: 3,
			PruneThreshold:         0.4,
			HighImpactThreshold:    0.7,
		},
		Concurrency: ConcurrencyConfig{StageWorkers: 8},
	}
}

// Load reads a TOML config file, filling unset fields from Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// ApplyEnv overrides config fields from the environment. Both entrypoints
// call this so container deployments never need a config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if len(c.Pipeline.Dimensions) == 0 {
		c.Pipeline.Dimensions = def.Pipeline.Dimensions
	}
	if c.Pipeline.HypothesesPerDimension == 0 {
		c.Pipeline.HypothesesPerDimension = def.Pipeline.HypothesesPerDimension
	}
	if c.Pipeline.PruneThreshold == 0 {
		c.Pipeline.PruneThreshold = def.Pipeline.PruneThreshold
	}
	if c.Pipeline.HighImpactThreshold == 0 {
		c.Pipeline.HighImpactThreshold = def.Pipeline.HighImpactThreshold
	}
	if c.Concurrency.StageWorkers == 0 {
		c.Concurrency.StageWorkers = def.Concurrency.StageWorkers
	}
	if c.LLM.Retries == 0 {
		c.LLM.Retries = def.LLM.Retries
	}
}
