package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[pipeline]
prune_threshold = 0.35
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.35, cfg.Pipeline.PruneThreshold)
	// Unset fields keep defaults.
	assert.Len(t, cfg.Pipeline.Dimensions, 7)
	assert.Equal(t, 8, cfg.Concurrency.StageWorkers)
	assert.Equal(t, 3, cfg.LLM.Retries)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("MEMGRAPH_URI", "bolt://graph:7687")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
}
