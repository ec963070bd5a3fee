package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/docstack-ai/docstack/internal/rag"
)

type searchHandler struct {
	assistant assistantService
	logger    *slog.Logger
}

// search handles GET /api/v1/search?q=...&k=N: semantic search over the
// caller's documents.
func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "k must be a positive integer", h.logger)
			return
		}
		k = parsed
	}

	chunks, err := h.assistant.Search(r.Context(), ownerID, query, k)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if chunks == nil {
		chunks = []rag.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}
