// Package llm invokes the language model, either as a single blocking
// completion or as an incremental token stream.
//
// Streaming uses a lazy iter.Seq2[string, error]: each yielded pair is
// either a text increment (err == nil) or a terminal error (the sequence
// ends after the first non-nil error). The sequence is finite and
// non-restartable.
package llm

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrUpstream indicates the generation provider failed.
	ErrUpstream = errors.New("generation provider error")

	// ErrRateLimited indicates the provider rejected the request due to
	// rate limiting.
	ErrRateLimited = errors.New("generation provider rate limited")

	// ErrEmptyPrompt indicates no messages were supplied.
	ErrEmptyPrompt = errors.New("prompt has no messages")
)

// Message roles. The model's turn-taking contract recognizes exactly these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the generation contract. Implementations must be safe for
// concurrent use.
type Client interface {
	// Complete performs a blocking completion and returns the full text.
	// Provider failure is a terminal error; no partial result is returned.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream returns a lazy sequence of text increments. Increments are
	// yielded as soon as they arrive from the provider. If the upstream
	// stream fails partway, the failure is yielded as the final pair
	// rather than silently truncating. Canceling ctx stops the stream.
	Stream(ctx context.Context, messages []Message) iter.Seq2[string, error]
}
