package llm

import (
	"context"
	"fmt"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/router"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

type Config struct {
	Provider            string
	GeminiAPIKey        string
	GeminiModel         string
	EmbeddingModel      string
	EmbeddingDimensions int
	AnthropicAPIKey     string
	AnthropicModel      string
}

// Clients are the model collaborators built from configuration. Either
// field may be nil: a nil Generator yields deterministic answers and a nil
// Embedder leaves retrieval unavailable.
type Clients struct {
	Generator router.Generator
	Embedder  *Gemini
}

// New builds the generator for cfg.Provider and, whenever a Gemini key is
// present, the embedder.
func New(ctx context.Context, cfg Config, logger *log.Logger) (Clients, error) {
	if logger == nil {
		logger = log.Discard()
	}
	var clients Clients

	if cfg.GeminiAPIKey != "" {
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:              cfg.GeminiAPIKey,
			Model:               cfg.GeminiModel,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		}, logger)
		if err != nil {
			return Clients{}, err
		}
		clients.Embedder = g
	}

	switch cfg.Provider {
	case ProviderNone:
	case ProviderGemini, "":
		if clients.Embedder == nil {
			return Clients{}, fmt.Errorf("gemini provider without GEMINI_API_KEY: %w", core.ErrCapabilityUnavailable)
		}
		clients.Generator = clients.Embedder
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return Clients{}, fmt.Errorf("anthropic provider without ANTHROPIC_API_KEY: %w", core.ErrCapabilityUnavailable)
		}
		clients.Generator = NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	default:
		return Clients{}, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	return clients, nil
}

// RouterEmbedder returns the embedder as the router port, or a nil interface
// when there is none.
func (c Clients) RouterEmbedder() router.Embedder {
	if c.Embedder == nil {
		return nil
	}
	return c.Embedder
}
