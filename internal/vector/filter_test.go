package vector

import "testing"

func TestMatchesFilter(t *testing.T) {
	meta := map[string]interface{}{"isSection": true, "type": "md", "mtime": float64(10)}
	tests := []struct {
		name   string
		filter map[string]interface{}
		want   bool
	}{
		{"nil filter", nil, true},
		{"bool match", map[string]interface{}{"isSection": true}, true},
		{"bool mismatch", map[string]interface{}{"isSection": false}, false},
		{"string and bool", map[string]interface{}{"isSection": true, "type": "md"}, true},
		{"int against float", map[string]interface{}{"mtime": 10}, true},
		{"string against bool", map[string]interface{}{"isSection": "true"}, false},
		{"absent key", map[string]interface{}{"other": "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesFilter(meta, tt.filter); got != tt.want {
				t.Errorf("MatchesFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0, 1.5, -2.25}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length blob")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{2, 0}, []float32{5, 0}); got < 0.9999 {
		t.Errorf("parallel vectors: %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: %f", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector: %f", got)
	}
}
