package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client using the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates a Client backed by the given OpenAI client.
func NewOpenAIClient(client *openai.Client, model string, logger *slog.Logger) (*OpenAIClient, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if model == "" {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{client: client, model: model, logger: logger}, nil
}

// Complete performs a blocking chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req, err := c.buildRequest(messages, false)
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyProviderError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion response", ErrUpstream)
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream performs a streaming chat completion, yielding text increments as
// they arrive. A mid-stream provider failure is yielded as the final pair.
func (c *OpenAIClient) Stream(ctx context.Context, messages []Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		req, err := c.buildRequest(messages, true)
		if err != nil {
			yield("", err)
			return
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", classifyProviderError(err))
			return
		}
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				c.logger.Debug("closing completion stream", "error", closeErr)
			}
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				// Context cancellation means the consumer went away;
				// nobody is listening for a terminal error.
				if ctx.Err() != nil {
					return
				}
				yield("", classifyProviderError(err))
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// buildRequest converts messages to an OpenAI request, dropping entries
// with empty content: a null-content turn is invalid upstream.
func (c *OpenAIClient) buildRequest(messages []Message, stream bool) (openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if len(msgs) == 0 {
		return openai.ChatCompletionRequest{}, ErrEmptyPrompt
	}

	return openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   stream,
	}, nil
}

// classifyProviderError maps OpenAI client errors onto the package
// sentinels while preserving the original error text.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
