// Package document provides document persistence and the write-path service
// that keeps the vector index in sync with content changes.
package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Lifecycle status values for a document.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var (
	// ErrNotFound indicates the document does not exist or is not owned by
	// the requesting user.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate document")

	// ErrInvalidStatus indicates an unknown lifecycle status.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrEmptyTitle indicates a missing title.
	ErrEmptyTitle = errors.New("document title is required")

	// ErrEmptyContent indicates missing content.
	ErrEmptyContent = errors.New("document content is required")
)

// Document is a user-owned text document. Embedding holds the cached copy
// of the last successfully synced vector; it may lag the content if a sync
// failed (callers tolerate staleness).
type Document struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"ownerId"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Status    string      `json:"status"`
	TypeID    *uuid.UUID  `json:"typeId,omitempty"`
	TagIDs    []uuid.UUID `json:"tagIds"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Update carries a partial document update. Nil fields are left unchanged.
type Update struct {
	Title   *string
	Content *string
	Status  *string
	TypeID  *uuid.UUID
	TagIDs  *[]uuid.UUID
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}
