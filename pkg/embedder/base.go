// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding implementations must satisfy,
// enabling text-to-vector conversion for similarity search.
package embedder

import (
	"context"
	"errors"
)

// Predefined errors for provider failures.
//
// Both ErrProviderUnavailable and ErrProviderRateLimited are retryable:
// callers are expected to back off and retry before giving up on a batch.
var (
	// ErrProviderUnavailable indicates the provider could not be reached
	// or returned a transient server-side failure.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrProviderRateLimited indicates the provider rejected the request
	// because of rate limiting.
	ErrProviderRateLimited = errors.New("embedding provider rate limited")
)

// IsRetryable reports whether err is a transient provider failure that
// a caller may retry with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRateLimited)
}

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, local) must implement this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// The returned slice has the same length as texts and is positionally
	// aligned with it: result[i] is the embedding of texts[i].
	//
	// This method is more efficient than calling Embed multiple times,
	// as it can batch process requests.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of embedding vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
