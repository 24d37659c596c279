// Package local provides a self-contained embedding provider with no external
// dependencies.
//
// Vectors are derived deterministically from a hash of the input text, so
// identical texts always map to identical unit vectors. Quality is far below a
// real embedding model, but latency is constant and the provider never fails,
// which makes it suitable as a development default and as the fallback side of
// an embedder.Fallback composition.
package local

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

// Client is a local, deterministic embedding provider.
// It implements the embedder.Provider interface.
type Client struct {
	dimensions int
}

// Config is the configuration for the local embedder.
type Config struct {
	// Dimensions is the vector size to produce. Defaults to DefaultDimensions.
	Dimensions int
}

// NewClient creates a new local embedder.
func NewClient(cfg *Config) (*Client, error) {
	dimensions := DefaultDimensions
	if cfg != nil && cfg.Dimensions > 0 {
		dimensions = cfg.Dimensions
	}
	return &Client{dimensions: dimensions}, nil
}

// Embed converts a single text to a deterministic unit vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float64, c.dimensions)
	for i := range embedding {
		// Linear congruential generator seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float64(int64(seed)) / float64(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// EmbedBatch converts multiple texts to vectors. Output order matches input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embedding, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the local embedder holds no resources.
func (c *Client) Close() error {
	return nil
}

// normalize scales vec to unit length.
func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
