package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/reasonlab/noesis/internal/config"
)

// NewFromConfig builds a Reasoner for the configured provider. Ollama is
// served through the OpenAI-compatible client pointed at its /v1 endpoint.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, workers int) (Reasoner, error) {
	provider := strings.ToLower(cfg.Provider)

	var client Client
	switch provider {
	case "openai":
		client = NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case "claude":
		client = NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		client = c

	case "ollama":
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // dummy key, ignored by Ollama
		}
		client = NewOpenAIClient(apiKey, cfg.Model, baseURL)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	return NewReasoner(client, provider, cfg.Retries, workers), nil
}
