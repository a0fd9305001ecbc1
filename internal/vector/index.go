// Package vector provides vector index and similarity search.
package vector

import "context"

// Entry is one vector to insert, keyed by ID.
type Entry struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// Match is a single query hit.
type Match struct {
	ID       string
	Score    float64
	Values   []float32
	Metadata map[string]interface{}
}

// QueryOptions controls a similarity query. Filter keeps only entries whose metadata
// has an equal value for every key in the filter.
type QueryOptions struct {
	TopK           int
	Filter         map[string]interface{}
	ReturnValues   bool
	ReturnMetadata bool
}

// VectorIndex defines vector storage and filtered similarity search.
// Insert overwrites entries that already exist under the same ID.
type VectorIndex interface {
	Insert(ctx context.Context, entries []Entry) error
	DeleteByIDs(ctx context.Context, ids []string) error
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Match, error)
	Size() int
	Type() string
	Close() error
}

// Snapshotter is implemented by indexes that live in memory and persist to a file.
type Snapshotter interface {
	Save(path string) error
	Load(path string) error
}
