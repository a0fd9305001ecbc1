package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGIndex stores vectors in PostgreSQL with the pgvector extension. Filters are
// evaluated with JSONB containment and ranking uses the cosine distance operator.
type PGIndex struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewPGIndex connects to dsn and creates the extension and table if needed.
func NewPGIndex(ctx context.Context, dsn, table string, dimensions int) (*PGIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	idx := &PGIndex{db: db, table: table, dimensions: dimensions}
	if err := idx.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (p *PGIndex) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`, p.table, p.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING GIN (metadata)`, p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Type returns the index type identifier.
func (p *PGIndex) Type() string {
	return string(IndexTypePGVector)
}

// Insert upserts entries in a single transaction.
func (p *PGIndex) Insert(ctx context.Context, entries []Entry) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, p.table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if len(e.Values) != p.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(e.Values), p.dimensions)
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.ID, pgvector.NewVector(e.Values), string(meta)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteByIDs removes entries by ID.
func (p *PGIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table), pq.Array(ids))
	return err
}

// Query returns the top-k entries whose metadata contains opts.Filter, nearest first.
func (p *PGIndex) Query(ctx context.Context, query []float32, opts QueryOptions) ([]Match, error) {
	if len(query) != p.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), p.dimensions)
	}
	filter := opts.Filter
	if filter == nil {
		filter = map[string]interface{}{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}
	limit := opts.TopK
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score, embedding, metadata
		FROM %s
		WHERE metadata @> $2::jsonb
		ORDER BY embedding <=> $1
		LIMIT $3`, p.table),
		pgvector.NewVector(query), string(filterJSON), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var (
			m        Match
			vec      pgvector.Vector
			metaJSON []byte
		)
		if err := rows.Scan(&m.ID, &m.Score, &vec, &metaJSON); err != nil {
			return nil, err
		}
		if opts.ReturnValues {
			m.Values = vec.Slice()
		}
		if opts.ReturnMetadata {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of %s: %w", m.ID, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Size returns the number of stored vectors, or 0 when the count cannot be read.
func (p *PGIndex) Size() int {
	var n int
	if err := p.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, p.table)).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the connection pool.
func (p *PGIndex) Close() error {
	return p.db.Close()
}
