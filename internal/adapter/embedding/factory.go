package embedding

import (
	"fmt"

	"semnotes/config"
	"semnotes/internal/adapter/cache"
	"semnotes/internal/port"
)

// New builds the configured provider and wraps it with the configured
// rate limiter and cache.
func New(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding

	var embedder port.Embedder
	switch ec.Provider {
	case "local":
		embedder = NewLocalEmbedder(ec.Dimension)
	case "gemini":
		e, err := NewGeminiEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL, ec.Dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e.WithTimeout(ec.Timeout)
	case "openai", "deepseek", "jina":
		var (
			e   *OpenAIEmbedder
			err error
		)
		switch ec.Provider {
		case "openai":
			e, err = NewOpenAIEmbedder(ec.APIKeyEnv, ec.Model)
		case "deepseek":
			e, err = NewDeepSeekEmbedder(ec.APIKeyEnv, ec.Model)
		default:
			e, err = NewJinaEmbedder(ec.APIKeyEnv, ec.Model)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e.WithBaseURL(ec.BaseURL).WithDimension(ec.Dimension).WithTimeout(ec.Timeout)
	case "ollama":
		e, err := NewOllamaEmbedder(ec.Model, ec.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e.WithDimension(ec.Dimension).WithTimeout(ec.Timeout)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ec.Provider)
	}

	if ec.RateLimit > 0 {
		embedder = NewRateLimited(embedder, ec.RateLimit, ec.Burst)
	}

	if cfg.Cache.Enabled {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(cfg.Cache.Size, cfg.Cache.TTL))
	}

	return embedder, nil
}
