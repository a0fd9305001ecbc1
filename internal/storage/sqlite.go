package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vaultsync/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		vault_key TEXT NOT NULL,
		path TEXT NOT NULL,
		basename TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		type TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (vault_key, path)
	);

	CREATE TABLE IF NOT EXISTS vector_ids (
		key TEXT PRIMARY KEY,
		ids TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Files returns the file record store.
func (s *SQLiteStore) Files() FileStore { return sqliteFiles{db: s.db} }

// VectorIDs returns the id-mapping store.
func (s *SQLiteStore) VectorIDs() IDStore { return sqliteIDs{db: s.db} }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteFiles struct {
	db *sql.DB
}

func (f sqliteFiles) GetAll(ctx context.Context, vaultKey string) ([]models.FileRecord, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT path, basename, mtime, type FROM files WHERE vault_key = ? ORDER BY path`, vaultKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]models.FileRecord, 0)
	for rows.Next() {
		var rec models.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Basename, &rec.Mtime, &rec.Type); err != nil {
			return nil, err
		}
		files = append(files, rec)
	}
	return files, rows.Err()
}

func (f sqliteFiles) Get(ctx context.Context, vaultKey, path string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := f.db.QueryRowContext(ctx,
		`SELECT path, basename, mtime, type FROM files WHERE vault_key = ? AND path = ?`, vaultKey, path,
	).Scan(&rec.Path, &rec.Basename, &rec.Mtime, &rec.Type)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (f sqliteFiles) Put(ctx context.Context, vaultKey string, file models.FileRecord) error {
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO files (vault_key, path, basename, mtime, type, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(vault_key, path) DO UPDATE SET
		   basename = excluded.basename, mtime = excluded.mtime, type = excluded.type,
		   updated_at = CURRENT_TIMESTAMP`,
		vaultKey, file.Path, file.Basename, file.Mtime, file.Type,
	)
	return err
}

func (f sqliteFiles) Delete(ctx context.Context, vaultKey, path string) error {
	_, err := f.db.ExecContext(ctx, `DELETE FROM files WHERE vault_key = ? AND path = ?`, vaultKey, path)
	return err
}

type sqliteIDs struct {
	db *sql.DB
}

func (s sqliteIDs) Get(ctx context.Context, key string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT ids FROM vector_ids WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vector ids %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector ids: %w", err)
	}
	return ids, nil
}

func (s sqliteIDs) Put(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal vector ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vector_ids (key, ids, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET ids = excluded.ids, updated_at = CURRENT_TIMESTAMP`,
		key, string(raw),
	)
	return err
}

func (s sqliteIDs) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vector_ids WHERE key = ?`, key)
	return err
}
