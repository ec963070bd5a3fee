// Package rag implements the retrieval pipeline: keeping the vector index
// in sync with document writes, retrieving context for a query, and
// assembling the grounded prompt handed to the model.
package rag

import (
	"context"
	"errors"
)

var (
	// ErrInvalidTopK indicates a retrieval request with k <= 0.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrEmptyQuery indicates a retrieval request with no query text.
	ErrEmptyQuery = errors.New("query text is required")
)

// Chunk is one retrieved piece of context.
type Chunk struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// ContentSource resolves a document id into its title and full text.
// document.Store satisfies it.
type ContentSource interface {
	Content(ctx context.Context, documentID string) (title, content string, err error)
}

// EmbeddingCache receives a copy of the last successfully synced embedding
// for audit. document.Store satisfies it.
type EmbeddingCache interface {
	CacheEmbedding(ctx context.Context, documentID string, vector []float32) error
}
