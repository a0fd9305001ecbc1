package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hyperjump/vaultsync/internal/chunkid"
	"github.com/hyperjump/vaultsync/internal/embedding"
	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/internal/storage"
	"github.com/hyperjump/vaultsync/internal/vector"
	"go.uber.org/zap"
)

// DefaultTopK is the number of matches requested from the vector index per query.
const DefaultTopK = 20

// ErrEmbeddingFailed wraps any failure of the embedding provider.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Indexer keeps the vector index and the id-mapping store aligned with vault files.
type Indexer struct {
	embedder      embedding.Embedder
	queryEmbedder embedding.Embedder
	index         vector.VectorIndex
	ids           storage.IDStore
	parser        *SectionParser
	topK          int
	logger        *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for indexing events and per-chunk insert failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithQueryEmbedder sets the embedder used for query text, typically a cached one.
// File chunks are always embedded with the indexer's main embedder.
func WithQueryEmbedder(e embedding.Embedder) IndexerOption {
	return func(idx *Indexer) { idx.queryEmbedder = e }
}

// WithMinViableContentLength sets the section retention margin.
func WithMinViableContentLength(n int) IndexerOption {
	return func(idx *Indexer) { idx.parser = NewSectionParser(n) }
}

// WithTopK sets how many matches a query asks the vector index for.
func WithTopK(k int) IndexerOption {
	return func(idx *Indexer) {
		if k > 0 {
			idx.topK = k
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(embedder embedding.Embedder, index vector.VectorIndex, ids storage.IDStore, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder: embedder,
		index:    index,
		ids:      ids,
		parser:   NewSectionParser(DefaultMinViableContentLength),
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.queryEmbedder == nil {
		idx.queryEmbedder = idx.embedder
	}
	return idx
}

// WithEmbedder returns a copy of idx that embeds both chunks and queries with e and
// shares everything else.
func (idx *Indexer) WithEmbedder(e embedding.Embedder) *Indexer {
	c := *idx
	c.embedder = e
	c.queryEmbedder = e
	return &c
}

// Embedder returns the embedder used for file chunks.
func (idx *Indexer) Embedder() embedding.Embedder {
	return idx.embedder
}

// VectorIDsKey returns the id-mapping store key of the file at path in a vault.
// The vault key is length-prefixed so no two (vault, path) pairs share a key.
func VectorIDsKey(vaultKey, path string) string {
	return strconv.Itoa(len(vaultKey)) + ":" + vaultKey + "_vector-ids_" + path
}

// ChunkOutcome reports whether one chunk made it into the vector index.
type ChunkOutcome struct {
	ID    string
	Index int
	Err   error
}

// AddResult is the outcome of AddEmbeddings.
type AddResult struct {
	// Records holds the inserted chunks in chunk order.
	Records  []models.EmbeddingRecord
	Outcomes []ChunkOutcome
}

// InsertedIDs returns the ids of the chunks that were inserted, in chunk order.
func (r *AddResult) InsertedIDs() []string {
	ids := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// Failed returns the outcomes of chunks whose insert failed.
func (r *AddResult) Failed() []ChunkOutcome {
	var failed []ChunkOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// BuildChunks returns the whole-document chunk followed by one chunk per retained section.
// Content holds the text to embed.
func (idx *Indexer) BuildChunks(vaultKey string, file models.FileInput) []models.Chunk {
	base := models.ChunkMetadata{
		VaultKey: vaultKey,
		Path:     file.Path,
		Basename: file.Basename,
		Mtime:    file.Mtime,
		Type:     file.Type,
	}
	sections := idx.parser.Parse(file.Content)
	chunks := make([]models.Chunk, 0, len(sections)+1)
	chunks = append(chunks, models.Chunk{
		ID:            chunkid.For(vaultKey, file.Path, chunkid.DocumentIndex),
		Index:         chunkid.DocumentIndex,
		ChunkMetadata: base,
		Content:       file.Content,
	})
	for i, s := range sections {
		meta := base
		meta.IsSection = true
		meta.Section = s.Info()
		chunks = append(chunks, models.Chunk{
			ID:            chunkid.For(vaultKey, file.Path, i+1),
			Index:         i + 1,
			ChunkMetadata: meta,
			Content:       RenderSection(s),
		})
	}
	return chunks
}

// AddEmbeddings embeds every chunk of file, inserts the vectors and records their ids.
//
// All chunks are embedded before anything is written; an embedding failure returns an
// error wrapping ErrEmbeddingFailed and leaves both stores untouched. Inserts are made one
// chunk at a time and a failed insert is logged and reported in the result without
// stopping the rest. The id set for the file is then replaced by the inserted ids.
func (idx *Indexer) AddEmbeddings(ctx context.Context, vaultKey string, file models.FileInput) (*AddResult, error) {
	chunks := idx.BuildChunks(vaultKey, file)
	idx.logger.Info("embedding file",
		zap.String("vault", vaultKey),
		zap.String("path", file.Path),
		zap.Int("chunks", len(chunks)))

	records := make([]models.EmbeddingRecord, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := idx.embedder.Embed(ctx, ch.Content)
		if err == nil && len(vec) == 0 {
			err = embedding.ErrEmptyEmbedding
		}
		if err != nil {
			idx.logger.Error("failed to embed chunk",
				zap.String("path", file.Path),
				zap.Int("index", ch.Index),
				zap.Error(err))
			return nil, fmt.Errorf("%w: chunk %d of %s: %w", ErrEmbeddingFailed, ch.Index, file.Path, err)
		}
		records = append(records, models.EmbeddingRecord{Chunk: ch, Vector: vec})
	}

	result := &AddResult{
		Records:  make([]models.EmbeddingRecord, 0, len(records)),
		Outcomes: make([]ChunkOutcome, 0, len(records)),
	}
	for _, rec := range records {
		entry := vector.Entry{ID: rec.ID, Values: rec.Vector, Metadata: rec.ChunkMetadata.Map()}
		err := idx.index.Insert(ctx, []vector.Entry{entry})
		result.Outcomes = append(result.Outcomes, ChunkOutcome{ID: rec.ID, Index: rec.Index, Err: err})
		if err != nil {
			idx.logger.Warn("failed to insert chunk",
				zap.String("path", file.Path),
				zap.String("id", rec.ID),
				zap.Int("index", rec.Index),
				zap.Error(err))
			continue
		}
		result.Records = append(result.Records, rec)
	}

	if err := idx.ids.Put(ctx, VectorIDsKey(vaultKey, file.Path), result.InsertedIDs()); err != nil {
		return result, fmt.Errorf("failed to store vector ids: %w", err)
	}

	idx.logger.Info("file embedded",
		zap.String("path", file.Path),
		zap.Int("inserted", len(result.Records)),
		zap.Int("failed", len(result.Failed())))
	return result, nil
}

// DeleteEmbeddings removes every vector recorded for file and then its id set.
// A file without an id set is a no-op. Both deletions are attempted; any failure is returned.
func (idx *Indexer) DeleteEmbeddings(ctx context.Context, vaultKey string, file models.FileRecord) error {
	key := VectorIDsKey(vaultKey, file.Path)
	ids, err := idx.ids.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		idx.logger.Debug("no vectors recorded for file", zap.String("path", file.Path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vector ids: %w", err)
	}

	var errs []error
	if len(ids) > 0 {
		if err := idx.index.DeleteByIDs(ctx, ids); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete vectors: %w", err))
		}
	}
	if err := idx.ids.Delete(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete vector ids: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	idx.logger.Info("embeddings deleted", zap.String("path", file.Path), zap.Int("vectors", len(ids)))
	return nil
}

// VectorIDs returns the recorded chunk ids of a file, or nil when none are recorded.
func (idx *Indexer) VectorIDs(ctx context.Context, vaultKey, path string) ([]string, error) {
	ids, err := idx.ids.Get(ctx, VectorIDsKey(vaultKey, path))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return ids, err
}

// QueryMatches embeds text and returns the metadata of the nearest chunks of a vault.
// On embedding failure the result is empty and the error wraps ErrEmbeddingFailed.
func (idx *Indexer) QueryMatches(ctx context.Context, vaultKey, text, typ string, isSection bool) ([]models.ChunkMetadata, error) {
	vec, err := idx.queryEmbedder.Embed(ctx, text)
	if err == nil && len(vec) == 0 {
		err = embedding.ErrEmptyEmbedding
	}
	if err != nil {
		idx.logger.Error("failed to embed query", zap.Error(err))
		return []models.ChunkMetadata{}, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return idx.VectorMatches(ctx, vaultKey, vec, typ, isSection)
}

// VectorMatches returns the metadata of the chunks of a vault nearest to vec that have the
// requested isSection value and, when typ is set, that file type. If any returned payload
// is malformed the whole result is empty.
func (idx *Indexer) VectorMatches(ctx context.Context, vaultKey string, vec []float32, typ string, isSection bool) ([]models.ChunkMetadata, error) {
	if vaultKey == "" {
		return nil, fmt.Errorf("%w: vault key is required", models.ErrInvalidQuery)
	}
	filter := map[string]interface{}{"vaultKey": vaultKey, "isSection": isSection}
	if typ != "" {
		filter["type"] = typ
	}
	matches, err := idx.index.Query(ctx, vec, vector.QueryOptions{
		TopK:           idx.topK,
		Filter:         filter,
		ReturnValues:   true,
		ReturnMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	out := make([]models.ChunkMetadata, 0, len(matches))
	for _, m := range matches {
		meta, err := models.ParseMetadata(m.Metadata, isSection)
		if err != nil {
			idx.logger.Warn("discarding query result with malformed metadata",
				zap.String("id", m.ID),
				zap.Error(err))
			return []models.ChunkMetadata{}, nil
		}
		out = append(out, *meta)
	}
	idx.logger.Debug("query matched", zap.Int("matches", len(out)))
	return out, nil
}
