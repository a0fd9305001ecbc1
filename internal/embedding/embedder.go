// Package embedding provides text embedding via an OpenAI-compatible API and caching.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/vaultsync/internal/config"
	"go.uber.org/zap"
)

// ErrEmptyEmbedding is returned when the provider answers without a vector.
var ErrEmptyEmbedding = errors.New("empty embedding")

// Embedder produces vector embeddings for text. Implementations do not retry.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
	Close() error
}

// New builds the provider embedder described by cfg. It is not cached.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		})
	case "mock":
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Cached wraps e in the LRU cache described by cfg, or returns e when caching is off.
// Only query text should be embedded through it; file chunks are always re-embedded.
func Cached(e Embedder, cfg config.EmbeddingConfig, logger *zap.Logger) Embedder {
	return NewCachedEmbedder(e, cfg.CacheEntries(), cfg.CacheTTL, logger)
}

// WithAPIKey returns e authenticating with key. Embedders that take no key are returned as is.
// A cached embedder is unwrapped: results paid for by one key are never served to another.
func WithAPIKey(e Embedder, key string) Embedder {
	switch v := e.(type) {
	case *OpenAIEmbedder:
		return v.WithAPIKey(key)
	case *CachedEmbedder:
		return WithAPIKey(v.next, key)
	}
	return e
}
