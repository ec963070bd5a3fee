package api

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/docstack-ai/docstack/internal/assistant"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/llm"
	"github.com/docstack-ai/docstack/internal/rag"
)

// documentService is the document CRUD dependency. document.Service
// satisfies it.
type documentService interface {
	Create(ctx context.Context, ownerID uuid.UUID, title, content string, typeID *uuid.UUID, tagIDs []uuid.UUID) (*document.WriteResult, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*document.Document, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*document.Document, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, upd document.Update) (*document.WriteResult, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// assistantService is the question-answering dependency. assistant.Service
// satisfies it.
type assistantService interface {
	Ask(ctx context.Context, ownerID, documentID uuid.UUID, question string) (string, error)
	Summarize(ctx context.Context, ownerID, documentID uuid.UUID) (string, error)
	StreamChat(ctx context.Context, ownerID, documentID uuid.UUID, turns []llm.Message) (iter.Seq2[string, error], error)
	Reply(ctx context.Context, ownerID, conversationID uuid.UUID, content string) (*assistant.ReplyResult, error)
	Search(ctx context.Context, ownerID uuid.UUID, query string, k int) ([]rag.Chunk, error)
	Similar(ctx context.Context, ownerID, documentID uuid.UUID, k int) ([]rag.Chunk, error)
}

type documentHandler struct {
	docs      documentService
	assistant assistantService
	logger    *slog.Logger
}

type documentWritePayload struct {
	Title   *string     `json:"title"`
	Content *string     `json:"content"`
	Status  *string     `json:"status"`
	TypeID  *uuid.UUID  `json:"typeId"`
	TagIDs  *[]uuid.UUID `json:"tagIds"`
}

type documentResponse struct {
	*document.Document
	Synced bool `json:"synced"`
}

// create handles POST /api/v1/documents.
func (h *documentHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var payload documentWritePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	title, content := "", ""
	if payload.Title != nil {
		title = *payload.Title
	}
	if payload.Content != nil {
		content = *payload.Content
	}

	var tagIDs []uuid.UUID
	if payload.TagIDs != nil {
		tagIDs = *payload.TagIDs
	}

	res, err := h.docs.Create(r.Context(), ownerID, title, content, payload.TypeID, tagIDs)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse{Document: res.Document, Synced: res.Synced})
}

// list handles GET /api/v1/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	docs, err := h.docs.List(r.Context(), ownerID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if docs == nil {
		docs = []*document.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// get handles GET /api/v1/documents/{id}.
func (h *documentHandler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	doc, err := h.docs.Get(r.Context(), ownerID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// update handles PATCH /api/v1/documents/{id}.
func (h *documentHandler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	var payload documentWritePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	res, err := h.docs.Update(r.Context(), ownerID, id, document.Update{
		Title:   payload.Title,
		Content: payload.Content,
		Status:  payload.Status,
		TypeID:  payload.TypeID,
		TagIDs:  payload.TagIDs,
	})
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: res.Document, Synced: res.Synced})
}

// remove handles DELETE /api/v1/documents/{id}.
func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), ownerID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askPayload struct {
	Question string `json:"question"`
}

// ask handles POST /api/v1/documents/{id}/ask.
func (h *documentHandler) ask(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	var payload askPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	answer, err := h.assistant.Ask(r.Context(), ownerID, id, payload.Question)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// summarize handles POST /api/v1/documents/{id}/summarize.
func (h *documentHandler) summarize(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.assistant.Summarize(r.Context(), ownerID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// similar handles GET /api/v1/documents/{id}/similar.
func (h *documentHandler) similar(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "k must be a positive integer", h.logger)
			return
		}
		k = parsed
	}

	chunks, err := h.assistant.Similar(r.Context(), ownerID, id, k)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if chunks == nil {
		chunks = []rag.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

type chatPayload struct {
	Messages []llm.Message `json:"messages"`
}

// chatStream handles POST /api/v1/documents/{id}/chat/stream.
//
// Pre-flight failures (bad body, unowned document) are normal JSON errors.
// Once the SSE headers are committed the status is fixed at 200, so any
// later failure is reported in-band as a terminal "error" event. Every
// stream ends with exactly one terminal event unless the client is gone.
func (h *documentHandler) chatStream(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := callerAndID(w, r, h.logger)
	if !ok {
		return
	}

	var payload chatPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	seq, err := h.assistant.StreamChat(r.Context(), ownerID, id, payload.Messages)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	setStreamHeaders(w)
	ctx := r.Context()

	for part, streamErr := range seq {
		if ctx.Err() != nil {
			h.logger.Debug("client disconnected mid-stream", "document", id)
			return
		}
		if streamErr != nil {
			_ = writeEvent(w, flusher, streamEvent{Type: eventError, Content: publicStreamError(streamErr)})
			return
		}
		if part == "" {
			continue
		}
		if err := writeEvent(w, flusher, streamEvent{Type: eventBot, Content: part}); err != nil {
			h.logger.Debug("failed to write stream increment", "error", err)
			return
		}
	}

	_ = writeEvent(w, flusher, streamEvent{Type: eventEnd})
}

// publicStreamError reduces a stream failure to a client-safe message.
func publicStreamError(err error) string {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return "upstream provider rate limited"
	case errors.Is(err, llm.ErrUpstream):
		return "upstream provider error"
	default:
		return "generation failed"
	}
}

// callerID extracts the authenticated caller, writing a 401 if absent.
func callerID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	uid, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "identity_required", "caller identity missing", logger)
		return uuid.Nil, false
	}
	return uid, true
}

// callerAndID extracts the caller plus the {id} path parameter.
func callerAndID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, uuid.UUID, bool) {
	uid, ok := callerID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
		return uuid.Nil, uuid.Nil, false
	}
	return uid, id, true
}
