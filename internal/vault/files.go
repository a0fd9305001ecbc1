// Package vault keeps vault file records and their embeddings consistent.
package vault

import (
	"context"
	"fmt"

	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/storage"
	"go.uber.org/zap"
)

// Files manages the file records of every vault.
type Files struct {
	store  storage.FileStore
	logger *zap.Logger
}

// NewFiles creates a file manager over store. logger may be nil.
func NewFiles(store storage.FileStore, logger *zap.Logger) *Files {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Files{store: store, logger: logger}
}

// GetFiles returns every file record of the vault.
func (f *Files) GetFiles(ctx context.Context, vaultKey string) ([]models.FileRecord, error) {
	files, err := f.store.GetAll(ctx, vaultKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// AddFile stores the metadata of file, replacing any record at the same path.
// The content is never persisted.
func (f *Files) AddFile(ctx context.Context, vaultKey string, file models.FileInput) error {
	if file.Path == "" {
		return fmt.Errorf("file path is required")
	}
	if err := f.store.Put(ctx, vaultKey, file.Record()); err != nil {
		return fmt.Errorf("failed to store file %s: %w", file.Path, err)
	}
	f.logger.Debug("file stored", zap.String("vault", vaultKey), zap.String("path", file.Path))
	return nil
}

// DeleteFile removes the record at file.Path. Removing an unknown path succeeds.
func (f *Files) DeleteFile(ctx context.Context, vaultKey string, file models.FileRecord) error {
	if err := f.store.Delete(ctx, vaultKey, file.Path); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", file.Path, err)
	}
	f.logger.Debug("file deleted", zap.String("vault", vaultKey), zap.String("path", file.Path))
	return nil
}
