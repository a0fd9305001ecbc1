package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// Suitable for tests and small vaults; Save and Load persist it between runs.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	metadata   []map[string]interface{}
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]string, 0),
		vectors:    make([][]float32, 0),
		metadata:   make([]map[string]interface{}, 0),
		pos:        make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Insert adds entries, replacing any entry with the same ID. Nothing is written
// when an entry has the wrong dimension.
func (m *MemoryIndex) Insert(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry id is required")
		}
		if len(e.Values) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(e.Values), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, m.dimensions)
		copy(vec, e.Values)
		meta := cloneMetadata(e.Metadata)
		if i, ok := m.pos[e.ID]; ok {
			m.vectors[i] = vec
			m.metadata[i] = meta
			continue
		}
		m.pos[e.ID] = len(m.ids)
		m.ids = append(m.ids, e.ID)
		m.vectors = append(m.vectors, vec)
		m.metadata = append(m.metadata, meta)
	}
	return nil
}

// Query returns the top-k entries matching opts.Filter by cosine similarity.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, opts QueryOptions) ([]Match, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]Match, 0)
	for i, vec := range m.vectors {
		if !MatchesFilter(m.metadata[i], opts.Filter) {
			continue
		}
		match := Match{ID: m.ids[i], Score: CosineSimilarity(query, vec)}
		if opts.ReturnValues {
			match.Values = append([]float32(nil), vec...)
		}
		if opts.ReturnMetadata {
			match.Metadata = cloneMetadata(m.metadata[i])
		}
		matches = append(matches, match)
	}
	return topK(matches, opts.TopK), nil
}

// DeleteByIDs removes entries by ID. Unknown IDs are ignored.
func (m *MemoryIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newIDs := make([]string, 0, len(m.ids))
	newVectors := make([][]float32, 0, len(m.vectors))
	newMetadata := make([]map[string]interface{}, 0, len(m.metadata))
	pos := make(map[string]int, len(m.ids))
	for i, id := range m.ids {
		if removeSet[id] {
			continue
		}
		pos[id] = len(newIDs)
		newIDs = append(newIDs, id)
		newVectors = append(newVectors, m.vectors[i])
		newMetadata = append(newMetadata, m.metadata[i])
	}
	m.ids, m.vectors, m.metadata, m.pos = newIDs, newVectors, newMetadata, pos
	return nil
}

// Save persists the index to path. Directory is created if needed. Format: dimension (4), n (4),
// then per entry: idLen (4), id bytes, vector (dimension*4 bytes), metaLen (4), metadata JSON.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		if err := writeBlock(w, []byte(id)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(EncodeVector(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
		meta, err := json.Marshal(m.metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", id, err)
		}
		if err := writeBlock(w, meta); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush index file: %w", err)
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	metadata := make([]map[string]interface{}, 0, n)
	pos := make(map[string]int, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readBlock(r)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		vec, err := DecodeVector(buf)
		if err != nil {
			return err
		}
		raw, err := readBlock(r)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		var meta map[string]interface{}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
		pos[string(id)] = len(ids)
		ids = append(ids, string(id))
		vectors = append(vectors, vec)
		metadata = append(metadata, meta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.vectors, m.metadata, m.pos = ids, vectors, metadata, pos
	return nil
}

func writeBlock(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBlock(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
