package app

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docstack-ai/docstack/db"
	"github.com/docstack-ai/docstack/internal/api"
	"github.com/docstack-ai/docstack/internal/assistant"
	"github.com/docstack-ai/docstack/internal/config"
	"github.com/docstack-ai/docstack/internal/conversation"
	"github.com/docstack-ai/docstack/internal/database"
	"github.com/docstack-ai/docstack/internal/doctype"
	"github.com/docstack-ai/docstack/internal/document"
	"github.com/docstack-ai/docstack/internal/embedding"
	"github.com/docstack-ai/docstack/internal/llm"
	"github.com/docstack-ai/docstack/internal/rag"
	"github.com/docstack-ai/docstack/internal/tag"
	"github.com/docstack-ai/docstack/internal/vectorindex"
)

// Setup creates and initializes the application. Call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	client := provideOpenAIClient(cfg)

	generator, err := embedding.NewOpenAIGenerator(client, cfg.EmbeddingModel, cfg.EmbeddingDim, logger)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewOpenAIClient(client, cfg.ChatModel, logger)
	if err != nil {
		return nil, err
	}

	index, err := vectorindex.NewPostgres(pool, logger)
	if err != nil {
		return nil, err
	}

	docStore, err := document.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	convStore, err := conversation.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	tagStore, err := tag.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	typeStore, err := doctype.NewStore(pool, logger)
	if err != nil {
		return nil, err
	}
	a.Conversations = convStore
	a.Tags = tagStore
	a.Types = typeStore

	synchronizer, err := rag.NewSynchronizer(generator, index, docStore, logger)
	if err != nil {
		return nil, err
	}
	a.Documents = document.NewService(docStore, synchronizer, logger)

	retriever, err := rag.NewRetriever(generator, index, docStore, cfg.RetrievalTopK, config.MaxRetrievalTopK, logger)
	if err != nil {
		return nil, err
	}
	a.Retriever = retriever

	asst, err := assistant.NewService(docStore, retriever, model, convStore, cfg.MaxHistoryMessages, logger)
	if err != nil {
		return nil, err
	}
	a.Assistant = asst

	server, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		Documents:     a.Documents,
		Assistant:     asst,
		Conversations: convStore,
		Tags:          tagStore,
		Types:         typeStore,
		Pool:          pool,
		CORSOrigins:   cfg.CORSOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateBurst:     cfg.RateBurst,
	})
	if err != nil {
		return nil, err
	}
	a.handler = server.Handler()

	logger.Info("application initialized",
		"chat_model", cfg.ChatModel,
		"embedding_model", cfg.EmbeddingModel,
		"embedding_dim", cfg.EmbeddingDim,
	)
	return a, nil
}

// provideOpenAIClient builds the shared OpenAI client. Chat and embeddings
// ride the same HTTP client and credentials.
func provideOpenAIClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}
