// Package models defines core data structures for vault files, chunks, and queries.
package models

// FileRecord is the persisted metadata of one vault file. It never carries body content.
type FileRecord struct {
	Path     string `json:"path"`
	Basename string `json:"basename"`
	Mtime    int64  `json:"mtime"`
	Type     string `json:"type"`
}

// FileInput is a file as pushed by a client, including its full markdown content.
type FileInput struct {
	FileRecord
	Content string `json:"content,omitempty"`
}

// Record returns the file metadata with the content stripped.
func (f FileInput) Record() FileRecord {
	return f.FileRecord
}

// Section is one heading-delimited part of a markdown document.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Info returns the section fields kept as vector metadata.
func (s Section) Info() *SectionInfo {
	return &SectionInfo{Heading: s.Heading, Level: s.Level, Path: s.Path}
}

// SectionInfo locates a section chunk inside its document.
type SectionInfo struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Path    string `json:"path"`
}

// ChunkMetadata is everything stored next to a vector in the index.
type ChunkMetadata struct {
	VaultKey  string       `json:"vaultKey"`
	Path      string       `json:"path"`
	Basename  string       `json:"basename"`
	Mtime     int64        `json:"mtime"`
	Type      string       `json:"type"`
	IsSection bool         `json:"isSection"`
	Section   *SectionInfo `json:"section,omitempty"`
}

// Chunk is the unit that receives one embedding: the whole document (index 0) or a section.
type Chunk struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	ChunkMetadata
	Content string `json:"-"`
}

// EmbeddingRecord is a chunk together with its vector.
type EmbeddingRecord struct {
	Chunk
	Vector []float32 `json:"-"`
}
