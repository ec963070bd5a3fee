package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIGenerator implements Generator using the OpenAI embeddings API.
type OpenAIGenerator struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *slog.Logger
}

// NewOpenAIGenerator creates a Generator backed by the given OpenAI client.
// dimensions must match the pgvector column width in the schema.
func NewOpenAIGenerator(client *openai.Client, model string, dimensions int, logger *slog.Logger) (*OpenAIGenerator, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	if dimensions < 1 {
		return nil, fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIGenerator{
		client:     client,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// Dimensions returns the configured vector dimensionality.
func (g *OpenAIGenerator) Dimensions() int {
	return g.dimensions
}

// Embed generates an embedding for the given text.
// No retries; the caller decides retry policy.
func (g *OpenAIGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	resp, err := g.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      g.model,
		Dimensions: g.dimensions,
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUnavailable)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != g.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), g.dimensions)
	}

	g.logger.Debug("generated embedding", "chars", len(text), "dims", len(vec))
	return vec, nil
}

// classifyProviderError maps OpenAI client errors onto the package sentinels
// while preserving the original error for logging.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Transport-level failure (connection refused, timeout, canceled).
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
