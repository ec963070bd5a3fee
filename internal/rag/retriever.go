package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docstack-ai/docstack/internal/embedding"
	"github.com/docstack-ai/docstack/internal/vectorindex"
)

// Retriever turns a natural language query into ranked context chunks.
type Retriever struct {
	generator embedding.Generator
	index     vectorindex.Index
	source    ContentSource
	defaultK  int
	maxK      int
	logger    *slog.Logger
}

// NewRetriever creates a Retriever. defaultK is used when a caller passes
// k == 0; maxK caps oversized requests.
func NewRetriever(gen embedding.Generator, index vectorindex.Index, source ContentSource, defaultK, maxK int, logger *slog.Logger) (*Retriever, error) {
	if gen == nil {
		return nil, fmt.Errorf("embedding generator is required")
	}
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if source == nil {
		return nil, fmt.Errorf("content source is required")
	}
	if defaultK <= 0 {
		return nil, fmt.Errorf("default top-k must be positive, got %d", defaultK)
	}
	if maxK < defaultK {
		return nil, fmt.Errorf("max top-k %d below default %d", maxK, defaultK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		generator: gen,
		index:     index,
		source:    source,
		defaultK:  defaultK,
		maxK:      maxK,
		logger:    logger,
	}, nil
}

// DefaultK returns the configured default result count.
func (r *Retriever) DefaultK() int {
	return r.defaultK
}

// Retrieve embeds the query and returns the k most similar documents with
// their full content, ordered by similarity descending. k == 0 selects the
// configured default; k above the configured maximum is clamped.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, k)
	}
	if k == 0 {
		k = r.defaultK
	}
	if k > r.maxK {
		k = r.maxK
	}

	vector, err := r.generator.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	return r.resolve(ctx, matches), nil
}

// RetrieveForDocument returns context for a question about one specific
// document: that document first, then up to k-1 nearest neighbors. The
// pinned document is always included even when similarity search would
// have ranked it out.
func (r *Retriever) RetrieveForDocument(ctx context.Context, documentID, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.defaultK
	}
	if k > r.maxK {
		k = r.maxK
	}

	title, content, err := r.source.Content(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", documentID, err)
	}
	pinned := Chunk{DocumentID: documentID, Title: title, Content: content, Score: 1}

	if strings.TrimSpace(query) == "" || k == 1 {
		return []Chunk{pinned}, nil
	}

	vector, err := r.generator.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	chunks := []Chunk{pinned}
	for _, m := range matches {
		if m.DocumentID == documentID {
			continue
		}
		if len(chunks) == k {
			break
		}
		c, err := r.resolveOne(ctx, m)
		if err != nil {
			r.logger.Warn("skipping unresolvable match", "document", m.DocumentID, "error", err)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (r *Retriever) resolve(ctx context.Context, matches []vectorindex.Match) []Chunk {
	chunks := make([]Chunk, 0, len(matches))
	for _, m := range matches {
		c, err := r.resolveOne(ctx, m)
		if err != nil {
			// The index can briefly lead the document table during a
			// concurrent delete. Skip rather than fail the whole query.
			r.logger.Warn("skipping unresolvable match", "document", m.DocumentID, "error", err)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func (r *Retriever) resolveOne(ctx context.Context, m vectorindex.Match) (Chunk, error) {
	title, content, err := r.source.Content(ctx, m.DocumentID)
	if err != nil {
		return Chunk{}, err
	}
	return Chunk{DocumentID: m.DocumentID, Title: title, Content: content, Score: m.Score}, nil
}
