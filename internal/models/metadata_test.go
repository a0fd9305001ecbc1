package models

import (
	"errors"
	"testing"
)

func TestParseMetadata_roundTrip(t *testing.T) {
	m := ChunkMetadata{
		VaultKey:  "vault",
		Path:      "notes/a.md",
		Basename:  "a",
		Mtime:     1700000000000,
		Type:      "md",
		IsSection: true,
		Section:   &SectionInfo{Heading: "A", Level: 1, Path: "A"},
	}
	got, err := ParseMetadata(m.Map(), true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != m.Path || got.Mtime != m.Mtime || got.Section == nil || *got.Section != *m.Section {
		t.Errorf("ParseMetadata() = %+v, want %+v", got, m)
	}
}

func TestParseMetadata_invalid(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"path":      "a.md",
			"basename":  "a",
			"mtime":     float64(1),
			"type":      "md",
			"isSection": true,
			"section":   map[string]interface{}{"heading": "A", "level": float64(1), "path": "A"},
		}
	}
	tests := []struct {
		name           string
		mutate         func(m map[string]interface{})
		requireSection bool
		wantErr        bool
	}{
		{"valid", func(m map[string]interface{}) {}, true, false},
		{"missing path", func(m map[string]interface{}) { delete(m, "path") }, false, true},
		{"missing basename", func(m map[string]interface{}) { delete(m, "basename") }, false, true},
		{"missing mtime", func(m map[string]interface{}) { delete(m, "mtime") }, false, true},
		{"string mtime", func(m map[string]interface{}) { m["mtime"] = "yesterday" }, false, true},
		{"missing type", func(m map[string]interface{}) { delete(m, "type") }, false, true},
		{"missing section not required", func(m map[string]interface{}) { delete(m, "section") }, false, false},
		{"missing section required", func(m map[string]interface{}) { delete(m, "section") }, true, true},
		{"zero level", func(m map[string]interface{}) {
			m["section"] = map[string]interface{}{"heading": "A", "level": float64(0), "path": "A"}
		}, true, true},
		{"section without heading", func(m map[string]interface{}) {
			m["section"] = map[string]interface{}{"level": float64(2), "path": "A"}
		}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(m)
			_, err := ParseMetadata(m, tt.requireSection)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMetadata) {
				t.Errorf("error should wrap ErrInvalidMetadata, got %v", err)
			}
		})
	}
}

func TestParseMetadata_nil(t *testing.T) {
	if _, err := ParseMetadata(nil, false); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("expected ErrInvalidMetadata, got %v", err)
	}
}
