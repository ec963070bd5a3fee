// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: the database
// pool, the OpenAI clients, the retrieval pipeline and the HTTP server.
package app

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docstack-ai/docstack/internal/assistant"
	"github.com/docstack-ai/docstack/internal/config"
	"github.com/docstack-ai/docstack/internal/conversation"
	"github.com/docstack-ai/docstack/internal/doctype"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/rag"
	"github.com/docstack-ai/docstack/internal/tag"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DBPool *pgxpool.Pool

	Documents     *document.Service
	Conversations *conversation.Store
	Tags          *tag.Store
	Types         *doctype.Store
	Retriever     *rag.Retriever
	Assistant     *assistant.Service

	handler http.Handler
}

// Handler returns the HTTP entrypoint.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}
