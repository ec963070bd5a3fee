package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docstack-ai/docstack/internal/conversation"
	"github.com/docstack-ai/docstack/internal/doctype"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/embedding"
	"github.com/docstack-ai/docstack/internal/llm"
	"github.com/docstack-ai/docstack/internal/rag"
	"github.com/docstack-ai/docstack/internal/tag"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response. It encodes into a buffer first so a
// failed encode can still produce a clean 500 instead of a torn body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}

// writeError writes a JSON error envelope with the given status.
func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code, "message", message)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeDomainError maps a domain error onto an HTTP status and error code.
// Internal detail never reaches the client for 5xx responses.
func writeDomainError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, document.ErrNotFound),
		errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, tag.ErrNotFound),
		errors.Is(err, doctype.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found", logger)

	case errors.Is(err, document.ErrDuplicate),
		errors.Is(err, tag.ErrDuplicate),
		errors.Is(err, doctype.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err.Error(), logger)

	case errors.Is(err, document.ErrEmptyTitle),
		errors.Is(err, document.ErrEmptyContent),
		errors.Is(err, document.ErrInvalidStatus),
		errors.Is(err, conversation.ErrEmptyTitle),
		errors.Is(err, conversation.ErrEmptyContent),
		errors.Is(err, conversation.ErrInvalidRole),
		errors.Is(err, conversation.ErrInvalidStatus),
		errors.Is(err, tag.ErrEmptyName),
		errors.Is(err, doctype.ErrEmptyName),
		errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, rag.ErrInvalidTopK),
		errors.Is(err, llm.ErrEmptyPrompt),
		errors.Is(err, embedding.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)

	case errors.Is(err, llm.ErrRateLimited), errors.Is(err, embedding.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "provider_rate_limited", "upstream provider rate limited", logger)

	case errors.Is(err, llm.ErrUpstream), errors.Is(err, embedding.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "provider_error", "upstream provider error", logger)

	default:
		logger.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}

// decodeJSON decodes a request body with a 1MB cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(dst)
}
