// Package storage defines the per-vault file store and the vector id-mapping store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/vaultsync/internal/config"
	"github.com/hyperjump/vaultsync/internal/models"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("not found")

// FileStore persists file records. Every key is scoped by vault key; writes are
// visible to subsequent reads in the same vault.
type FileStore interface {
	GetAll(ctx context.Context, vaultKey string) ([]models.FileRecord, error)
	Get(ctx context.Context, vaultKey, path string) (*models.FileRecord, error)
	Put(ctx context.Context, vaultKey string, file models.FileRecord) error
	Delete(ctx context.Context, vaultKey, path string) error
}

// IDStore persists the ordered chunk ids produced for each file.
type IDStore interface {
	Get(ctx context.Context, key string) ([]string, error)
	Put(ctx context.Context, key string, ids []string) error
	Delete(ctx context.Context, key string) error
}

// Store is a backend that provides both stores.
type Store interface {
	Files() FileStore
	VectorIDs() IDStore
	// Path returns the on-disk location of the backend.
	Path() string
	Close() error
}

// Open opens the backend selected by cfg.Driver.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteStore(cfg.DatabasePath)
	case "bolt":
		return NewBoltStore(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, bolt)", cfg.Driver)
	}
}
