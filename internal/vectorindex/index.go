// Package vectorindex stores document embeddings and answers k-nearest-
// neighbor queries by cosine similarity.
//
// Two backends exist: Postgres (pgvector, the production index) and Memory
// (brute-force, for tests and single-process development). Both order query
// results by similarity descending with a deterministic recency tie-break.
package vectorindex

import (
	"context"
	"errors"
)

// ErrInvalidK indicates a Query with k <= 0.
var ErrInvalidK = errors.New("k must be positive")

// Entry is a single (id, vector, metadata) triple held by the index.
type Entry struct {
	DocumentID string
	Vector     []float32
	Title      string
}

// Match is a query result with its similarity score in [0, 1] for
// normalized vectors (higher is more similar).
type Match struct {
	DocumentID string
	Score      float32
	Title      string
}

// Index is the vector search contract.
//
// Guarantees implementations must provide:
//   - Upsert replaces any existing entry for the id; it is idempotent.
//   - Query returns matches ordered by similarity descending; ties broken
//     by most recent upsert first, then by id, so ordering is deterministic.
//   - A successful Upsert is visible to an immediately following Query.
//   - Remove is a no-op when the id is absent.
//
// Implementations must be safe for concurrent use.
type Index interface {
	Upsert(ctx context.Context, entry Entry) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Remove(ctx context.Context, documentID string) error
}
