// Package tag provides tag persistence. Tags are flat labels shared across
// a user's documents; the many-to-many association lives on the document
// side (document_tags).
package tag

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
	// ErrNotFound indicates the tag does not exist.
	ErrNotFound = errors.New("tag not found")

	// ErrDuplicate indicates a tag with the same name already exists.
	ErrDuplicate = errors.New("tag already exists")

	// ErrEmptyName indicates a missing tag name.
	ErrEmptyName = errors.New("tag name is required")
)

// Tag is a flat label.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists tags in PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a tag Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts a new tag.
func (s *Store) Create(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var t Tag
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tags (name) VALUES ($1) RETURNING id, name, created_at`, name)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
		}
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	s.logger.Debug("created tag", "id", t.ID, "name", t.Name)
	return &t, nil
}

// List returns all tags ordered by name.
func (s *Store) List(ctx context.Context) ([]*Tag, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}

// Get returns a tag by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Tag, error) {
	var t Tag
	row := s.pool.QueryRow(ctx, `SELECT id, name, created_at FROM tags WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting tag: %w", err)
	}
	return &t, nil
}

// Delete removes a tag. Associations in document_tags are cascaded away.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
