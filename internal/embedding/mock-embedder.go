package embedding

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hyperjump/vaultsync/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline use. It returns a
// fixed-dimension unit vector derived from the text hash so that the same text always
// gets the same embedding.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64
	failWhen   func(text string) bool
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// FailWhen makes Embed return an error for every text matching pred.
func (e *MockEmbedder) FailWhen(pred func(text string) bool) *MockEmbedder {
	e.failWhen = pred
	return e
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.failWhen != nil && e.failWhen(text) {
		return nil, fmt.Errorf("mock: %w", ErrEmptyEmbedding)
	}
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Calls returns how many times Embed was invoked.
func (e *MockEmbedder) Calls() int {
	return int(e.calls.Load())
}

// Model returns a fixed identifier.
func (e *MockEmbedder) Model() string {
	return fmt.Sprintf("mock-%d", e.dimensions)
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
