package engine

import (
	"context"
	"fmt"
)

// Config selects and configures an embedding backend.
type Config struct {
	Provider string // gemini, openai, ollama or none
	APIKey   string
	BaseURL  string
}

// New builds the engine named by cfg.Provider. It returns ErrDisabled when
// the provider is "none" or a keyed provider has no API key.
func New(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, ErrDisabled
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini API key not set", ErrDisabled)
		}
		return NewGeminiEngine(ctx, cfg.APIKey, cfg.BaseURL)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai API key not set", ErrDisabled)
		}
		return NewOpenAIEngine(cfg.APIKey, cfg.BaseURL)
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return NewOllamaEngine(base), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
