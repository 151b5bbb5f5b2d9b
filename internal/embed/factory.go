package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings (offline, deterministic)
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama HTTP API for embeddings
	ProviderOllama ProviderType = "ollama"
)

// ValidProviders lists the recognized provider names.
var ValidProviders = []string{string(ProviderStatic), string(ProviderOllama)}

// Config selects and configures an embedder.
type Config struct {
	Provider   string
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// CacheSize is the LRU size; zero disables caching.
	CacheSize int
}

// NewEmbedder constructs the configured embedder eagerly.
// Any construction failure is reported as a capability-unavailable error;
// there is no silent fallback to another provider.
func NewEmbedder(ctx context.Context, cfg Config) (Embedder, error) {
	var embedder Embedder

	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderStatic, "":
		embedder = NewStaticEmbedder(cfg.Dimensions)

	case ProviderOllama:
		ocfg := DefaultOllamaConfig()
		if cfg.Host != "" {
			ocfg.Host = cfg.Host
		}
		if cfg.Model != "" {
			ocfg.Model = cfg.Model
		}
		ocfg.Dimensions = cfg.Dimensions
		if cfg.BatchSize > 0 {
			ocfg.BatchSize = cfg.BatchSize
		}
		if cfg.Timeout > 0 {
			ocfg.Timeout = cfg.Timeout
		}
		ollama, err := NewOllamaEmbedder(ctx, ocfg)
		if err != nil {
			return nil, amerrors.CapabilityUnavailable("embedder", err).
				WithDetail("provider", string(ProviderOllama)).
				WithSuggestion("start Ollama ('ollama serve') and pull the model, or set embed.provider: static")
		}
		embedder = ollama

	default:
		return nil, amerrors.CapabilityUnavailable("embedder",
			fmt.Errorf("unknown embedding provider %q (valid: %s)", cfg.Provider, strings.Join(ValidProviders, ", ")))
	}

	slog.Info("embedder_ready",
		slog.String("provider", cfg.Provider),
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Int("cache_size", cfg.CacheSize))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(embedder, cfg.CacheSize), nil
	}
	return embedder, nil
}
