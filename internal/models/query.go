package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned for a query that has neither or both of text and vector.
var ErrInvalidQuery = errors.New("invalid query")

// Query is a related-notes request. Exactly one of Text and Vector must be set.
type Query struct {
	Text      string    `json:"text,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
	Type      string    `json:"type,omitempty"`
	IsSection bool      `json:"isSection,omitempty"`
}

// IsVector reports whether the query carries a precomputed vector.
func (q *Query) IsVector() bool {
	return len(q.Vector) > 0
}

// Validate ensures the query has exactly one of text or vector.
func (q *Query) Validate() error {
	hasText := q.Text != ""
	switch {
	case !hasText && !q.IsVector():
		return fmt.Errorf("%w: text or vector is required", ErrInvalidQuery)
	case hasText && q.IsVector():
		return fmt.Errorf("%w: text and vector are mutually exclusive", ErrInvalidQuery)
	}
	return nil
}
