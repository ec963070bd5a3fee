package vectorindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const upsertEntrySQL = `INSERT INTO document_embeddings (document_id, embedding, title, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (document_id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		title = EXCLUDED.title,
		updated_at = now()`

// Cosine distance (<=>) ascending equals similarity descending. Ties are
// broken by most recent upsert, then id, keeping ordering deterministic.
const queryNearestSQL = `SELECT document_id, 1 - (embedding <=> $1) AS similarity, title
	FROM document_embeddings
	ORDER BY embedding <=> $1 ASC, updated_at DESC, document_id DESC
	LIMIT $2`

const removeEntrySQL = `DELETE FROM document_embeddings WHERE document_id = $1`

// Postgres implements Index on PostgreSQL with the pgvector extension.
//
// Postgres is safe for concurrent use; the database owns all
// synchronization.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a pgvector-backed Index.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Upsert inserts or replaces the entry for entry.DocumentID.
func (p *Postgres) Upsert(ctx context.Context, entry Entry) error {
	id, err := uuid.Parse(entry.DocumentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", entry.DocumentID, err)
	}
	if len(entry.Vector) == 0 {
		return fmt.Errorf("empty vector for document %q", entry.DocumentID)
	}

	vec := pgvector.NewVector(entry.Vector)
	if _, err := p.pool.Exec(ctx, upsertEntrySQL, id, vec, entry.Title); err != nil {
		return fmt.Errorf("upserting embedding for document %q: %w", entry.DocumentID, err)
	}

	p.logger.Debug("upserted embedding", "document_id", entry.DocumentID, "dims", len(entry.Vector))
	return nil
}

// Query returns the k nearest entries to vector by cosine similarity.
func (p *Postgres) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	vec := pgvector.NewVector(vector)
	rows, err := p.pool.Query(ctx, queryNearestSQL, vec, k)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id    uuid.UUID
			score float32
			title string
		)
		if err := rows.Scan(&id, &score, &title); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, Match{DocumentID: id.String(), Score: score, Title: title})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return matches, nil
}

// Remove deletes the entry for documentID. Absent ids are a no-op.
func (p *Postgres) Remove(ctx context.Context, documentID string) error {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", documentID, err)
	}

	if _, err := p.pool.Exec(ctx, removeEntrySQL, id); err != nil {
		return fmt.Errorf("removing embedding for document %q: %w", documentID, err)
	}
	return nil
}
