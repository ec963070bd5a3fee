package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertConversationSQL = `
		INSERT INTO conversations (owner_id, title)
		VALUES ($1, $2)
		RETURNING id, owner_id, title, status, created_at, updated_at`

	getConversationSQL = `
		SELECT id, owner_id, title, status, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND owner_id = $2`

	listConversationsSQL = `
		SELECT id, owner_id, title, status, created_at, updated_at
		FROM conversations
		WHERE owner_id = $1
		ORDER BY updated_at DESC`

	updateConversationSQL = `
		UPDATE conversations
		SET title = COALESCE($3, title),
		    status = COALESCE($4, status),
		    updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, title, status, created_at, updated_at`

	deleteConversationSQL = `
		DELETE FROM conversations WHERE id = $1 AND owner_id = $2`

	lockConversationSQL = `
		SELECT id FROM conversations
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE`

	nextSequenceSQL = `
		SELECT COALESCE(MAX(sequence_number), 0) + 1
		FROM messages
		WHERE conversation_id = $1`

	insertMessageSQL = `
		INSERT INTO messages (conversation_id, role, content, author_id, sequence_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, role, content, author_id, sequence_number, created_at`

	touchConversationSQL = `
		UPDATE conversations SET updated_at = now() WHERE id = $1`

	listMessagesSQL = `
		SELECT m.id, m.conversation_id, m.role, m.content, m.author_id,
		       m.sequence_number, m.created_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1 AND c.owner_id = $2
		ORDER BY m.sequence_number ASC`
)

// Store persists conversations and messages in PostgreSQL. Every read and
// write is scoped to the owner; a conversation owned by someone else is
// indistinguishable from a missing one.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create starts a new active conversation.
func (s *Store) Create(ctx context.Context, ownerID uuid.UUID, title string) (*Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	var c Conversation
	row := s.pool.QueryRow(ctx, insertConversationSQL, ownerID, title)
	if err := scanConversation(row, &c); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "owner", c.OwnerID)
	return &c, nil
}

// GetByID returns an owned conversation.
func (s *Store) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*Conversation, error) {
	var c Conversation
	row := s.pool.QueryRow(ctx, getConversationSQL, id, ownerID)
	if err := scanConversation(row, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return &c, nil
}

// ListByOwner returns the owner's conversations, most recently active first.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx, listConversationsSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := scanConversation(rows, &c); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return out, nil
}

// Apply applies a partial update to an owned conversation.
func (s *Store) Apply(ctx context.Context, id, ownerID uuid.UUID, upd Update) (*Conversation, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, ErrEmptyTitle
	}
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
	}

	var c Conversation
	row := s.pool.QueryRow(ctx, updateConversationSQL, id, ownerID, upd.Title, upd.Status)
	if err := scanConversation(row, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating conversation: %w", err)
	}
	return &c, nil
}

// Delete removes an owned conversation and, via cascade, its messages.
func (s *Store) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteConversationSQL, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage appends one message to an owned conversation, assigning the
// next sequence number under a row lock so concurrent appends serialize
// instead of colliding.
func (s *Store) AppendMessage(ctx context.Context, conversationID, ownerID uuid.UUID, role, content string, authorID *uuid.UUID) (*Message, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedID uuid.UUID
	if err := tx.QueryRow(ctx, lockConversationSQL, conversationID, ownerID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking conversation: %w", err)
	}

	var seq int
	if err := tx.QueryRow(ctx, nextSequenceSQL, conversationID).Scan(&seq); err != nil {
		return nil, fmt.Errorf("assigning sequence number: %w", err)
	}

	var m Message
	row := tx.QueryRow(ctx, insertMessageSQL, conversationID, role, content, authorID, seq)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.AuthorID, &m.SequenceNumber, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.Exec(ctx, touchConversationSQL, conversationID); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("appended message",
		"conversation", conversationID, "role", role, "sequence", seq)
	return &m, nil
}

// ListMessages returns an owned conversation's messages in creation order.
// An empty result for a missing conversation is reported as ErrNotFound.
func (s *Store) ListMessages(ctx context.Context, conversationID, ownerID uuid.UUID) ([]*Message, error) {
	if _, err := s.GetByID(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listMessagesSQL, conversationID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.AuthorID, &m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner, c *Conversation) error {
	return row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt)
}
