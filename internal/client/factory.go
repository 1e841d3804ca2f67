package client

import (
	"context"
	"fmt"

	"forge/internal/config"
)

// New creates the capability client for the configured provider.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.API.Provider {
	case "", "ollama":
		return NewOllamaClient(
			cfg.API.OllamaBaseURL,
			cfg.API.PlannerModel,
			cfg.API.CoderModel,
			cfg.API.EmbeddingModel,
		)
	case "gemini":
		return NewGeminiClient(
			ctx,
			cfg.API.GeminiKey,
			cfg.API.PlannerModel,
			cfg.API.CoderModel,
			cfg.API.EmbeddingModel,
		)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.API.Provider)
	}
}
