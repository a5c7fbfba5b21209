package perception

import (
	"context"
	"fmt"

	"uiforge/internal/config"
	"uiforge/internal/types"
)

// NewClientFromConfig builds the client for the configured provider.
// Configuration problems are reported as types.ErrConfiguration.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.LLM.Provider {
	case config.ProviderGroq:
		gc := DefaultGroqConfig(cfg.LLM.APIKey, cfg.LLM.Model)
		if cfg.LLM.BaseURL != "" {
			gc.BaseURL = cfg.LLM.BaseURL
		}
		gc.Timeout = cfg.GetLLMTimeout()
		return NewGroqClient(gc), nil

	case config.ProviderGemini:
		gc := GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.GetLLMTimeout(),
		}
		// The Groq default endpoint is meaningless for Gemini.
		if cfg.LLM.BaseURL != config.DefaultGroqBaseURL {
			gc.BaseURL = cfg.LLM.BaseURL
		}
		return NewGeminiClient(ctx, gc)

	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", types.ErrConfiguration, cfg.LLM.Provider)
	}
}
