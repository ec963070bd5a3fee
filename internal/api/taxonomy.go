package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/docstack-ai/docstack/internal/doctype"
	"github.com/docstack-ai/docstack/internal/tag"
)

// tagStore is the tag dependency. tag.Store satisfies it.
type tagStore interface {
	Create(ctx context.Context, name string) (*tag.Tag, error)
	List(ctx context.Context) ([]*tag.Tag, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// typeStore is the document type dependency. doctype.Store satisfies it.
type typeStore interface {
	Create(ctx context.Context, name string) (*doctype.Type, error)
	List(ctx context.Context) ([]*doctype.Type, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type taxonomyHandler struct {
	tags   tagStore
	types  typeStore
	logger *slog.Logger
}

type namePayload struct {
	Name string `json:"name"`
}

func (h *taxonomyHandler) createTag(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	var payload namePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	t, err := h.tags.Create(r.Context(), payload.Name)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *taxonomyHandler) listTags(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if tags == nil {
		tags = []*tag.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *taxonomyHandler) deleteTag(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", h.logger)
		return
	}

	if err := h.tags.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *taxonomyHandler) createType(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	var payload namePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	t, err := h.types.Create(r.Context(), payload.Name)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *taxonomyHandler) listTypes(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	types, err := h.types.List(r.Context())
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	if types == nil {
		types = []*doctype.Type{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *taxonomyHandler) deleteType(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r, h.logger); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", h.logger)
		return
	}

	if err := h.types.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
