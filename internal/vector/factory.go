package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/vaultsync/internal/config"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search, snapshotted to IndexPath.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeSQLite stores vectors in a SQLite file.
	IndexTypeSQLite IndexType = "sqlite"
	// IndexTypePGVector stores vectors in PostgreSQL with pgvector.
	IndexTypePGVector IndexType = "pgvector"
)

// NewVectorIndex creates a vector index of the configured type.
// A memory index is loaded from cfg.IndexPath when that file exists.
func NewVectorIndex(ctx context.Context, cfg config.VectorConfig, dimensions int) (VectorIndex, error) {
	switch IndexType(cfg.IndexType) {
	case IndexTypeMemory, "":
		idx, err := NewMemoryIndex(dimensions)
		if err != nil {
			return nil, err
		}
		if err := idx.Load(cfg.IndexPath); err != nil {
			return nil, fmt.Errorf("failed to load memory index: %w", err)
		}
		return idx, nil
	case IndexTypeSQLite:
		return NewSQLiteIndex(cfg.IndexPath, dimensions)
	case IndexTypePGVector:
		return NewPGIndex(ctx, cfg.DSN, cfg.Table, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, sqlite, pgvector)", cfg.IndexType)
	}
}
