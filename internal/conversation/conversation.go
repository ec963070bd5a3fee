// Package conversation provides conversation and message persistence.
//
// A conversation is an owner-scoped, ordered transcript. Message order is
// authoritative in sequence_number, assigned transactionally on append, so
// replaying a conversation to the model always yields creation order even
// when wall-clock timestamps collide.
package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Conversation statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNotFound indicates the conversation does not exist or is not
	// owned by the caller.
	ErrNotFound = errors.New("conversation not found")

	// ErrEmptyTitle indicates a missing conversation title.
	ErrEmptyTitle = errors.New("conversation title is required")

	// ErrEmptyContent indicates a message with no content.
	ErrEmptyContent = errors.New("message content is required")

	// ErrInvalidRole indicates a role outside user/assistant.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrInvalidStatus indicates a status outside active/archived.
	ErrInvalidStatus = errors.New("invalid conversation status")
)

// Conversation is an owner-scoped chat transcript.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"ownerId"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one turn in a conversation. AuthorID is set for user turns
// and nil for assistant turns.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversationId"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	AuthorID       *uuid.UUID `json:"authorId,omitempty"`
	SequenceNumber int        `json:"sequenceNumber"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Update carries a partial conversation update. Nil fields are untouched.
type Update struct {
	Title  *string
	Status *string
}

// ValidStatus reports whether s is a known conversation status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusArchived
}

// ValidRole reports whether r is a known message role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAssistant
}
