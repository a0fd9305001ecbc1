package chunkid

import (
	"encoding/hex"
	"testing"
)

func TestFor_deterministic(t *testing.T) {
	id1 := For("vault", "notes/a.md", 0)
	id2 := For("vault", "notes/a.md", 0)
	if id1 != id2 {
		t.Errorf("same arguments should give same ID: %q vs %q", id1, id2)
	}
	if len(id1) != Length || Length != 40 {
		t.Errorf("ID length = %d, want 40", len(id1))
	}
	if _, err := hex.DecodeString(id1); err != nil {
		t.Errorf("ID should be hex: %q", id1)
	}
}

func TestFor_distinct(t *testing.T) {
	tests := []struct {
		name     string
		vault    string
		path     string
		index    int
		otherV   string
		otherP   string
		otherIdx int
	}{
		{"different index", "v", "a.md", 0, "v", "a.md", 1},
		{"different path", "v", "a.md", 0, "v", "b.md", 0},
		{"different vault", "v1", "a.md", 0, "v2", "a.md", 0},
		{"boundary shift", "ab", "c", 0, "a", "bc", 0},
		{"index digits", "v", "a.md1", 1, "v", "a.md", 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if For(tt.vault, tt.path, tt.index) == For(tt.otherV, tt.otherP, tt.otherIdx) {
				t.Errorf("expected different IDs for (%q,%q,%d) and (%q,%q,%d)",
					tt.vault, tt.path, tt.index, tt.otherV, tt.otherP, tt.otherIdx)
			}
		})
	}
}

func TestFor_uniqueAcrossSections(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 100; i++ {
		id := For("vault", "notes/a.md", i)
		if prev, ok := seen[id]; ok {
			t.Fatalf("index %d collides with index %d", i, prev)
		}
		seen[id] = i
	}
}
