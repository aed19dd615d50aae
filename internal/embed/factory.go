package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderStatic Provider = "static"
)

// FactoryConfig configures embedder construction.
type FactoryConfig struct {
	Provider   Provider
	Model      string
	OllamaHost string
	BatchSize  int
	Timeout    time.Duration

	// CacheSize enables the LRU embedding cache when positive.
	CacheSize int
}

// ParseProvider parses a provider name, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama, nil
	case "static":
		return ProviderStatic, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q (want ollama or static)", s)
	}
}

// New creates an embedder for the configured provider. The DOCASSIST_EMBEDDER
// environment variable, when set, overrides the configured provider. The
// result is wrapped in an LRU cache when CacheSize is positive.
func New(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	provider := cfg.Provider
	if env := os.Getenv("DOCASSIST_EMBEDDER"); env != "" {
		p, err := ParseProvider(env)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	var (
		inner Embedder
		err   error
	)
	switch provider {
	case ProviderStatic:
		inner = NewStaticEmbedder()
	case ProviderOllama:
		inner, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      cfg.OllamaHost,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	slog.Debug("embedder created",
		slog.String("provider", string(provider)),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
