package embedder

import "context"

// Fallback is a Provider that composes a primary and a secondary provider.
//
// Calls go to the primary first. If the primary fails with a retryable error
// (see IsRetryable), the same call is issued against the secondary. Non-retryable
// errors are returned as-is, since retrying a different provider would mask them.
//
// The typical composition is a remote provider backed by a local one:
//
//	provider := embedder.NewFallback(remote, local)
//
// Both providers must produce vectors of the same dimensionality; NewFallback
// does not verify this (the storage layer rejects mismatched vectors on insert).
type Fallback struct {
	primary   Provider
	secondary Provider
}

// NewFallback creates a Fallback provider from a primary and a secondary.
func NewFallback(primary, secondary Provider) *Fallback {
	return &Fallback{
		primary:   primary,
		secondary: secondary,
	}
}

// Embed converts a single text to a vector, falling back on retryable failure.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float64, error) {
	embedding, err := f.primary.Embed(ctx, text)
	if err != nil && IsRetryable(err) {
		return f.secondary.Embed(ctx, text)
	}
	return embedding, err
}

// EmbedBatch converts multiple texts to vectors, falling back on retryable failure.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings, err := f.primary.EmbedBatch(ctx, texts)
	if err != nil && IsRetryable(err) {
		return f.secondary.EmbedBatch(ctx, texts)
	}
	return embeddings, err
}

// Dimensions returns the primary provider's vector dimensions.
func (f *Fallback) Dimensions() int {
	return f.primary.Dimensions()
}

// Close closes both providers, returning the first error encountered.
func (f *Fallback) Close() error {
	err := f.primary.Close()
	if cerr := f.secondary.Close(); err == nil {
		err = cerr
	}
	return err
}
