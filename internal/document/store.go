package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

const documentCols = `id, owner_id, title, content, status, type_id, created_at, updated_at`

// Store persists documents in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a document Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts a new document owned by ownerID and returns it.
func (s *Store) Create(ctx context.Context, ownerID uuid.UUID, title, content string, typeID *uuid.UUID, tagIDs []uuid.UUID) (*Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO documents (owner_id, title, content, type_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+documentCols,
		ownerID, title, content, typeID)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapPgError("creating document", err)
	}

	if len(tagIDs) > 0 {
		if err := replaceTags(ctx, tx, doc.ID, tagIDs); err != nil {
			return nil, err
		}
		doc.TagIDs = tagIDs
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing document create: %w", err)
	}

	s.logger.Debug("created document", "id", doc.ID, "owner", ownerID)
	return doc, nil
}

// GetByID returns the document with the given id if owned by ownerID.
// Returns ErrNotFound for absent or unowned documents, indistinguishably,
// so ownership cannot be probed.
func (s *Store) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapPgError("getting document", err)
	}

	doc.TagIDs, err = s.tagIDs(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns all documents owned by ownerID, newest first.
func (s *Store) List(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Apply updates the document and returns the new state.
// Only non-nil fields of upd are changed.
func (s *Store) Apply(ctx context.Context, ownerID, id uuid.UUID, upd Update) (*Document, error) {
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE documents SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			status = COALESCE($5, status),
			type_id = COALESCE($6, type_id),
			updated_at = now()
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+documentCols,
		id, ownerID, upd.Title, upd.Content, upd.Status, upd.TypeID)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, mapPgError("updating document", err)
	}

	if upd.TagIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM document_tags WHERE document_id = $1`, id); err != nil {
			return nil, fmt.Errorf("clearing document tags: %w", err)
		}
		if err := replaceTags(ctx, tx, id, *upd.TagIDs); err != nil {
			return nil, err
		}
		doc.TagIDs = *upd.TagIDs
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing document update: %w", err)
	}

	if upd.TagIDs == nil {
		doc.TagIDs, err = s.tagIDs(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Debug("updated document", "id", id)
	return doc, nil
}

// Delete removes the document. The database cascades the deletion to
// document_tags and document_embeddings, so the vector index cannot
// reference a deleted document.
func (s *Store) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}

// CacheEmbedding stores the last successfully synced vector on the document
// row. Audit/cache only; retrieval reads document_embeddings.
func (s *Store) CacheEmbedding(ctx context.Context, documentID string, vector []float32) error {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", documentID, err)
	}

	vec := pgvector.NewVector(vector)
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET embedding = $2 WHERE id = $1`, id, vec)
	if err != nil {
		return fmt.Errorf("caching embedding for document %q: %w", documentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Content returns the title and content for a document id without an owner
// filter. Used by the retrieval pipeline, which operates on index matches;
// owner checks happen at the service boundary before results are exposed.
func (s *Store) Content(ctx context.Context, documentID string) (title, content string, err error) {
	id, parseErr := uuid.Parse(documentID)
	if parseErr != nil {
		return "", "", fmt.Errorf("invalid document id %q: %w", documentID, parseErr)
	}

	row := s.pool.QueryRow(ctx, `SELECT title, content FROM documents WHERE id = $1`, id)
	if err := row.Scan(&title, &content); err != nil {
		return "", "", mapPgError("fetching document content", err)
	}
	return title, content, nil
}

// OwnedBy reports whether the document belongs to ownerID.
func (s *Store) OwnedBy(ctx context.Context, documentID string, ownerID uuid.UUID) (bool, error) {
	id, err := uuid.Parse(documentID)
	if err != nil {
		return false, fmt.Errorf("invalid document id %q: %w", documentID, err)
	}

	var owned bool
	row := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1 AND owner_id = $2)`,
		id, ownerID)
	if err := row.Scan(&owned); err != nil {
		return false, fmt.Errorf("checking document ownership: %w", err)
	}
	return owned, nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &doc.Content,
		&doc.Status, &doc.TypeID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.TagIDs = []uuid.UUID{}
	return &doc, nil
}

func (s *Store) tagIDs(ctx context.Context, docID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tag_id FROM document_tags WHERE document_id = $1 ORDER BY tag_id`, docID)
	if err != nil {
		return nil, fmt.Errorf("loading document tags: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tag id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag ids: %w", err)
	}
	return ids, nil
}

func replaceTags(ctx context.Context, tx pgx.Tx, docID uuid.UUID, tagIDs []uuid.UUID) error {
	for _, tagID := range tagIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO document_tags (document_id, tag_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, docID, tagID); err != nil {
			return fmt.Errorf("attaching tag %s: %w", tagID, err)
		}
	}
	return nil
}

// mapPgError translates driver errors into package sentinels.
func mapPgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}

	return fmt.Errorf("%s: %w", op, err)
}
