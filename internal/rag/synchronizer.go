package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docstack-ai/docstack/internal/embedding"
	"github.com/docstack-ai/docstack/internal/vectorindex"
)

// Synchronizer keeps the vector index consistent with document writes.
// It embeds the document text, upserts the index entry, and caches the
// vector on the document row for audit. The cache write is best-effort;
// the index is the source of truth for retrieval.
type Synchronizer struct {
	generator embedding.Generator
	index     vectorindex.Index
	cache     EmbeddingCache
	logger    *slog.Logger
}

// NewSynchronizer creates a Synchronizer. cache may be nil.
func NewSynchronizer(gen embedding.Generator, index vectorindex.Index, cache EmbeddingCache, logger *slog.Logger) (*Synchronizer, error) {
	if gen == nil {
		return nil, fmt.Errorf("embedding generator is required")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{generator: gen, index: index, cache: cache, logger: logger}, nil
}

// SyncDocument embeds title and content and upserts the index entry.
// Title is prepended to the embedded text so retrieval can match on it.
func (s *Synchronizer) SyncDocument(ctx context.Context, documentID, title, content string) error {
	text := content
	if title != "" {
		text = title + "\n\n" + content
	}

	vector, err := s.generator.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding document %s: %w", documentID, err)
	}

	if err := s.index.Upsert(ctx, vectorindex.Entry{
		DocumentID: documentID,
		Vector:     vector,
		Title:      title,
	}); err != nil {
		return fmt.Errorf("indexing document %s: %w", documentID, err)
	}

	if s.cache != nil {
		if err := s.cache.CacheEmbedding(ctx, documentID, vector); err != nil {
			s.logger.Warn("failed to cache embedding", "document", documentID, "error", err)
		}
	}

	s.logger.Debug("synced document embedding", "document", documentID, "dimensions", len(vector))
	return nil
}

// RemoveDocument drops the index entry. Removing an absent entry succeeds.
func (s *Synchronizer) RemoveDocument(ctx context.Context, documentID string) error {
	if err := s.index.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("removing document %s from index: %w", documentID, err)
	}
	return nil
}
