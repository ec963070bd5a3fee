// Package embedding turns text into fixed-length vectors via a remote
// embedding model.
//
// The Generator performs no retries: retry and backoff policy belongs to
// the caller. Provider failures map to the sentinel errors ErrRateLimited
// and ErrUnavailable so callers can branch with errors.Is.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable indicates the embedding provider failed or was
	// unreachable.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrRateLimited indicates the provider rejected the request due to
	// rate limiting.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrEmptyInput indicates the input text was empty.
	ErrEmptyInput = errors.New("embedding input is empty")
)

// Generator produces a fixed-dimensionality embedding vector for a text.
// Implementations must be safe for concurrent use.
type Generator interface {
	// Embed returns the embedding vector for text. The vector length is
	// the Generator's configured dimensionality.
	Embed(ctx context.Context, text string) ([]float32, error)
}
