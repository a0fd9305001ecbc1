package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/embedding"
	"github.com/hyperjump/vaultsync/internal/indexer"
	"github.com/hyperjump/vaultsync/internal/storage"
	"github.com/hyperjump/vaultsync/internal/vault"
	"github.com/hyperjump/vaultsync/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store       storage.Store
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Indexer     *indexer.Indexer
	Syncer      *vault.Syncer
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	vectorIndex, err := vector.NewVectorIndex(ctx, cfg.Vector, embedder.Dimensions())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = vectorIndex
	logger.Info("vector index initialized",
		zap.String("type", vectorIndex.Type()),
		zap.Int("vectors", vectorIndex.Size()),
		zap.String("storage", store.Path()))

	c.Indexer = indexer.NewIndexer(embedder, vectorIndex, store.VectorIDs(),
		indexer.WithLogger(logger),
		indexer.WithQueryEmbedder(embedding.Cached(embedder, cfg.Embedding, logger)),
		indexer.WithMinViableContentLength(cfg.Indexing.Margin()),
		indexer.WithTopK(cfg.Vector.TopK),
	)
	c.Syncer = vault.NewSyncer(vault.NewFiles(store.Files(), logger), c.Indexer, logger)
	return c, nil
}
