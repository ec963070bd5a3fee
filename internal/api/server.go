package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Documents     documentService   // Required
	Assistant     assistantService  // Required
	Conversations conversationStore // Required
	Tags          tagStore          // Required
	Types         typeStore         // Required
	Pool          *pgxpool.Pool     // Optional: nil degrades /ready to liveness
	CORSOrigins   []string          // Allowed origins for CORS
	IsDev         bool              // Disables HSTS for plain-HTTP development
	TrustProxy    bool              // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst     int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Documents == nil {
		return nil, errors.New("document service is required")
	}
	if cfg.Assistant == nil {
		return nil, errors.New("assistant service is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Tags == nil {
		return nil, errors.New("tag store is required")
	}
	if cfg.Types == nil {
		return nil, errors.New("document type store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dh := &documentHandler{docs: cfg.Documents, assistant: cfg.Assistant, logger: logger}
	ch := &conversationHandler{store: cfg.Conversations, assistant: cfg.Assistant, logger: logger}
	th := &taxonomyHandler{tags: cfg.Tags, types: cfg.Types, logger: logger}
	sh := &searchHandler{assistant: cfg.Assistant, logger: logger}

	mux := http.NewServeMux()

	// Document CRUD and pipeline operations
	mux.HandleFunc("POST /api/v1/documents", dh.create)
	mux.HandleFunc("GET /api/v1/documents", dh.list)
	mux.HandleFunc("GET /api/v1/documents/{id}", dh.get)
	mux.HandleFunc("PATCH /api/v1/documents/{id}", dh.update)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", dh.remove)
	mux.HandleFunc("POST /api/v1/documents/{id}/ask", dh.ask)
	mux.HandleFunc("POST /api/v1/documents/{id}/summarize", dh.summarize)
	mux.HandleFunc("GET /api/v1/documents/{id}/similar", dh.similar)
	mux.HandleFunc("POST /api/v1/documents/{id}/chat/stream", dh.chatStream)

	// Conversations
	mux.HandleFunc("POST /api/v1/conversations", ch.create)
	mux.HandleFunc("GET /api/v1/conversations", ch.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}", ch.get)
	mux.HandleFunc("PATCH /api/v1/conversations/{id}", ch.update)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", ch.remove)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", ch.listMessages)
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", ch.appendMessage)

	// Taxonomy
	mux.HandleFunc("POST /api/v1/tags", th.createTag)
	mux.HandleFunc("GET /api/v1/tags", th.listTags)
	mux.HandleFunc("DELETE /api/v1/tags/{id}", th.deleteTag)
	mux.HandleFunc("POST /api/v1/document-types", th.createType)
	mux.HandleFunc("GET /api/v1/document-types", th.listTypes)
	mux.HandleFunc("DELETE /api/v1/document-types/{id}", th.deleteType)

	// Semantic search
	mux.HandleFunc("GET /api/v1/search", sh.search)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Identity → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = identityMiddleware(logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
