// Package cli holds the output and vault push helpers behind the vaultsync commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/vaultsync/internal/models"
	"github.com/hyperjump/vaultsync/pkg/utils"
)

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteMatches writes related-note matches to w.
func WriteMatches(w io.Writer, matches []models.ChunkMetadata, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, models.MatchesResponse{Data: matches})
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No related notes.")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%2d. %s", i+1, m.Path)
		if m.Section != nil {
			fmt.Fprintf(w, "  # %s", utils.Truncate(m.Section.Path, 80))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteFiles writes the file records held by the server.
func WriteFiles(w io.Writer, files []models.FileRecord, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, models.FilesResponse{Data: files})
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Path, f.Mtime, f.Type)
	}
	fmt.Fprintf(w, "%d file(s)\n", len(files))
	return nil
}

// WriteStatus writes the server status of a vault.
func WriteStatus(w io.Writer, st *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, st)
	}
	fmt.Fprintf(w, "files:              %d   # notes stored for this vault\n", st.Files)
	fmt.Fprintf(w, "vectors:            %d   # embedded chunks for this vault\n", st.Vectors)
	fmt.Fprintf(w, "index_type:         %s\n", st.IndexType)
	fmt.Fprintf(w, "embedding_model:    %s\n", st.EmbeddingModel)
	if st.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # storage + indices on disk\n", st.DiskUsageBytes)
	}
	return nil
}
