package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMetadata is returned when a vector index payload does not have the chunk shape.
var ErrInvalidMetadata = errors.New("invalid chunk metadata")

// Map flattens the metadata into the form stored in a vector index.
func (m ChunkMetadata) Map() map[string]interface{} {
	out := map[string]interface{}{
		"vaultKey":  m.VaultKey,
		"path":      m.Path,
		"basename":  m.Basename,
		"mtime":     m.Mtime,
		"type":      m.Type,
		"isSection": m.IsSection,
	}
	if m.Section != nil {
		out["section"] = map[string]interface{}{
			"heading": m.Section.Heading,
			"level":   m.Section.Level,
			"path":    m.Section.Path,
		}
	}
	return out
}

type rawSection struct {
	Heading *string `json:"heading"`
	Level   *int    `json:"level"`
	Path    *string `json:"path"`
}

type rawMetadata struct {
	VaultKey  string      `json:"vaultKey"`
	Path      *string     `json:"path"`
	Basename  *string     `json:"basename"`
	Mtime     *int64      `json:"mtime"`
	Type      *string     `json:"type"`
	IsSection bool        `json:"isSection"`
	Section   *rawSection `json:"section"`
}

// ParseMetadata validates a raw metadata payload and converts it to ChunkMetadata.
// path, basename, mtime and type must be present; when requireSection is set the
// payload must also carry a section with a heading, a level of at least 1 and a path.
func ParseMetadata(raw map[string]interface{}, requireSection bool) (*ChunkMetadata, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: missing metadata", ErrInvalidMetadata)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	var r rawMetadata
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	switch {
	case r.Path == nil || *r.Path == "":
		return nil, fmt.Errorf("%w: missing path", ErrInvalidMetadata)
	case r.Basename == nil:
		return nil, fmt.Errorf("%w: missing basename", ErrInvalidMetadata)
	case r.Mtime == nil:
		return nil, fmt.Errorf("%w: missing mtime", ErrInvalidMetadata)
	case r.Type == nil:
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMetadata)
	}

	m := &ChunkMetadata{
		VaultKey:  r.VaultKey,
		Path:      *r.Path,
		Basename:  *r.Basename,
		Mtime:     *r.Mtime,
		Type:      *r.Type,
		IsSection: r.IsSection,
	}

	if r.Section != nil && r.Section.Heading != nil && r.Section.Level != nil && r.Section.Path != nil && *r.Section.Level >= 1 {
		m.Section = &SectionInfo{Heading: *r.Section.Heading, Level: *r.Section.Level, Path: *r.Section.Path}
	}
	if requireSection && m.Section == nil {
		return nil, fmt.Errorf("%w: missing or malformed section", ErrInvalidMetadata)
	}
	return m, nil
}
