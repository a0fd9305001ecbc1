package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/vaultsync/internal/models"
)

var (
	filesBucket     = []byte("files")
	vectorIDsBucket = []byte("vector_ids")
)

// BoltStore implements Store on an embedded bbolt database. File records live in one
// nested bucket per vault so listing a vault never touches another vault's keys.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{filesBucket, vectorIDsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Files returns the file record store.
func (b *BoltStore) Files() FileStore { return boltFiles{db: b.db} }

// VectorIDs returns the id-mapping store.
func (b *BoltStore) VectorIDs() IDStore { return boltIDs{db: b.db} }

// Path returns the database file path.
func (b *BoltStore) Path() string { return b.path }

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

type boltFiles struct {
	db *bolt.DB
}

func (f boltFiles) GetAll(ctx context.Context, vaultKey string) ([]models.FileRecord, error) {
	files := make([]models.FileRecord, 0)
	err := f.db.View(func(tx *bolt.Tx) error {
		vault := tx.Bucket(filesBucket).Bucket([]byte(vaultKey))
		if vault == nil {
			return nil
		}
		return vault.ForEach(func(k, v []byte) error {
			var rec models.FileRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal file %s: %w", k, err)
			}
			files = append(files, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (f boltFiles) Get(ctx context.Context, vaultKey, path string) (*models.FileRecord, error) {
	var rec *models.FileRecord
	err := f.db.View(func(tx *bolt.Tx) error {
		vault := tx.Bucket(filesBucket).Bucket([]byte(vaultKey))
		if vault == nil {
			return nil
		}
		v := vault.Get([]byte(path))
		if v == nil {
			return nil
		}
		rec = &models.FileRecord{}
		return json.Unmarshal(v, rec)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	return rec, nil
}

func (f boltFiles) Put(ctx context.Context, vaultKey string, file models.FileRecord) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal file: %w", err)
	}
	return f.db.Update(func(tx *bolt.Tx) error {
		vault, err := tx.Bucket(filesBucket).CreateBucketIfNotExists([]byte(vaultKey))
		if err != nil {
			return err
		}
		return vault.Put([]byte(file.Path), data)
	})
}

func (f boltFiles) Delete(ctx context.Context, vaultKey, path string) error {
	return f.db.Update(func(tx *bolt.Tx) error {
		vault := tx.Bucket(filesBucket).Bucket([]byte(vaultKey))
		if vault == nil {
			return nil
		}
		return vault.Delete([]byte(path))
	})
}

type boltIDs struct {
	db *bolt.DB
}

func (s boltIDs) Get(ctx context.Context, key string) ([]string, error) {
	var (
		ids   []string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(vectorIDsBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &ids)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("vector ids %s: %w", key, ErrNotFound)
	}
	return ids, nil
}

func (s boltIDs) Put(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal vector ids: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(vectorIDsBucket).Put([]byte(key), data)
	})
}

func (s boltIDs) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(vectorIDsBucket).Delete([]byte(key))
	})
}
