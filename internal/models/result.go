package models

// FilesResponse is the body returned when listing files.
type FilesResponse struct {
	Data []FileRecord `json:"data"`
}

// MatchesResponse is the body returned for a related-notes query.
type MatchesResponse struct {
	Data []ChunkMetadata `json:"data"`
}

// SyncResponse is the body returned after a file was replaced or removed.
type SyncResponse struct {
	Message    string   `json:"message"`
	RunID      string   `json:"run_id,omitempty"`
	Embeddings int      `json:"embeddings"`
	Failed     []string `json:"failed,omitempty"`
	Removed    int      `json:"removed,omitempty"`
}

// StatusResponse describes the state of one vault on the server.
type StatusResponse struct {
	Files          int    `json:"files"`
	Vectors        int    `json:"vectors"`
	IndexType      string `json:"index_type"`
	EmbeddingModel string `json:"embedding_model"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
}

// ErrorResponse is the body of every failed request. Step and RunID are set when a sync run
// stopped part way; Removed counts the files a bulk delete got through first.
type ErrorResponse struct {
	Error   string `json:"error"`
	Step    string `json:"step,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Removed int    `json:"removed,omitempty"`
}
