// Package doctype provides document type persistence. A document type is a
// named category (report, note, contract) a document may reference.
package doctype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

var (
	// ErrNotFound indicates the document type does not exist.
	ErrNotFound = errors.New("document type not found")

	// ErrDuplicate indicates a type with the same name already exists.
	ErrDuplicate = errors.New("document type already exists")

	// ErrEmptyName indicates a missing type name.
	ErrEmptyName = errors.New("document type name is required")
)

// Type is a named document category.
type Type struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists document types in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a document type Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts a new document type.
func (s *Store) Create(ctx context.Context, name string) (*Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var t Type
	row := s.pool.QueryRow(ctx,
		`INSERT INTO document_types (name) VALUES ($1) RETURNING id, name, created_at`, name)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("creating document type: %w", err)
	}

	s.logger.Debug("created document type", "id", t.ID, "name", t.Name)
	return &t, nil
}

// List returns all document types ordered by name.
func (s *Store) List(ctx context.Context) ([]*Type, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM document_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}
	defer rows.Close()

	var types []*Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document type: %w", err)
		}
		types = append(types, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document types: %w", err)
	}
	return types, nil
}

// Get returns a document type by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Type, error) {
	var t Type
	row := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM document_types WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting document type: %w", err)
	}
	return &t, nil
}

// Delete removes a document type. Documents referencing it keep a NULL type.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM document_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
