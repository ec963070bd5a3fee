package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/docstack-ai/docstack/internal/conversation"
)

// conversationStore is the transcript dependency. conversation.Store
// satisfies it.
type conversationStore interface {
	Create(ctx context.Context, ownerID uuid.UUID, title string) (*conversation.Conversation, error)
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*conversation.Conversation, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*conversation.Conversation, error)
	Apply(ctx context.Context, id, ownerID uuid.UUID, upd conversation.Update) (*conversation.Conversation, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	ListMessages(ctx context.Context, conversationID, ownerID uuid.UUID) ([]*conversation.Message, error)
}

type conversationHandler struct {
	store     conversationStore
	assistant assistantService
	logger    *slog.Logger
}

type conversationWritePayload struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// create handles POST /api/v1/conversations.
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var payload conversationWritePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	title := ""
	if payload.Title != nil {
		title = *payload.Title
	}

	conv, err := h.store.Create(r.Context(), ownerID, title)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// list handles GET /api/v1/conversations.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	convs, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if convs == nil {
		convs = []*conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// conversationDetail is a conversation with its transcript inlined.
type conversationDetail struct {
	*conversation.Conversation
	Messages []*conversation.Message `json:"messages"`
}

// get handles GET /api/v1/conversations/{id}. The response inlines the
// ordered transcript.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.GetByID(r.Context(), id, ownerID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	messages, err := h.store.ListMessages(r.Context(), id, ownerID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if messages == nil {
		messages = []*conversation.Message{}
	}
	writeJSON(w, http.StatusOK, conversationDetail{Conversation: conv, Messages: messages})
}

// update handles PATCH /api/v1/conversations/{id}.
func (h *conversationHandler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	var payload conversationWritePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	conv, err := h.store.Apply(r.Context(), id, ownerID, conversation.Update{
		Title:  payload.Title,
		Status: payload.Status,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// remove handles DELETE /api/v1/conversations/{id}.
func (h *conversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id, ownerID); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMessages handles GET /api/v1/conversations/{id}/messages.
func (h *conversationHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.store.ListMessages(r.Context(), id, ownerID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if messages == nil {
		messages = []*conversation.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type messagePayload struct {
	Content string `json:"content"`
}

// appendMessage handles POST /api/v1/conversations/{id}/messages: the user
// turn is stored, the assistant reply is generated and stored, and both
// are returned.
func (h *conversationHandler) appendMessage(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	var payload messagePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	result, err := h.assistant.Reply(r.Context(), ownerID, id, payload.Content)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
