package document

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Synchronizer keeps the vector index consistent with document mutations.
// Implemented by rag.Synchronizer; the interface lives here with its
// consumer.
type Synchronizer interface {
	// SyncDocument re-embeds content and upserts the index entry.
	SyncDocument(ctx context.Context, documentID, title, content string) error

	// RemoveDocument drops the index entry for documentID.
	RemoveDocument(ctx context.Context, documentID string) error
}

// storage is the persistence surface the service needs, satisfied by *Store.
type storage interface {
	Create(ctx context.Context, ownerID uuid.UUID, title, content string, typeID *uuid.UUID, tagIDs []uuid.UUID) (*Document, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Document, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*Document, error)
	Apply(ctx context.Context, ownerID, id uuid.UUID, upd Update) (*Document, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// WriteResult is the outcome of a document write. Synced reports whether
// the embedding sync succeeded. A false value is a degraded success, not an
// error: the document write itself has already been committed.
type WriteResult struct {
	Document *Document
	Synced   bool
}

// Service implements the document write path: persist first, then
// synchronize the vector index. Sync failure never rolls back the write.
type Service struct {
	store  storage
	sync   Synchronizer
	logger *slog.Logger
}

// NewService creates a document Service. sync may be nil, which disables
// index synchronization (every write is then reported as unsynced).
func NewService(store storage, sync Synchronizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sync: sync, logger: logger}
}

// Create persists a new document and synchronizes the vector index.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, title, content string, typeID *uuid.UUID, tagIDs []uuid.UUID) (*WriteResult, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	doc, err := s.store.Create(ctx, ownerID, title, content, typeID, tagIDs)
	if err != nil {
		return nil, err
	}

	return &WriteResult{Document: doc, Synced: s.syncAfterWrite(ctx, doc)}, nil
}

// Get returns a document owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Document, error) {
	return s.store.GetByID(ctx, ownerID, id)
}

// List returns all documents owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	return s.store.List(ctx, ownerID)
}

// Update applies a partial update. The index is re-synchronized when the
// title or content changed, since both feed the embedded text and the index
// stores the title as metadata. Status-only or tag-only updates keep the
// existing embedding.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, upd Update) (*WriteResult, error) {
	embeddedTextChanged := upd.Title != nil || upd.Content != nil

	doc, err := s.store.Apply(ctx, ownerID, id, upd)
	if err != nil {
		return nil, err
	}

	res := &WriteResult{Document: doc, Synced: true}
	if embeddedTextChanged {
		res.Synced = s.syncAfterWrite(ctx, doc)
	}
	return res, nil
}

// Delete removes the document and its index entry. The index entry is
// removed by the database cascade; RemoveDocument additionally covers
// index backends without referential integrity.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	if s.sync != nil {
		if err := s.sync.RemoveDocument(ctx, id.String()); err != nil {
			s.logger.Warn("removing index entry after delete", "document_id", id, "error", err)
		}
	}
	return nil
}

// syncAfterWrite attempts an embedding sync and reports success.
// Failure is logged and surfaced as degraded success, never as an error:
// the document write has already been committed and must not be undone.
func (s *Service) syncAfterWrite(ctx context.Context, doc *Document) bool {
	if s.sync == nil {
		return false
	}

	if err := s.sync.SyncDocument(ctx, doc.ID.String(), doc.Title, doc.Content); err != nil {
		s.logger.Warn("embedding sync failed, document left unindexed",
			"document_id", doc.ID, "error", err)
		return false
	}
	return true
}
