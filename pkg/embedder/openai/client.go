// Package openai provides an embedding provider backed by the OpenAI
// Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/devmem/devmem-go/pkg/embedder"
)

// Client is an OpenAI embedding client.
// It implements the embedder.Provider interface.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the embedding model name. Defaults to text-embedding-ada-002.
	Model string

	// BaseURL overrides the API base URL (optional).
	BaseURL string

	// Dimensions is the vector size. Defaults to 1536.
	Dimensions int
}

// NewClient creates a new OpenAI embedding client.
//
// Parameters:
//   - cfg: Configuration containing APIKey, Model, BaseURL and Dimensions
//
// Returns:
//   - *Client: The OpenAI embedder instance
//   - error: Error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	// Default to Ada v2 model. Named models resolve through the SDK's
	// text unmarshaler, which maps unrecognized names to Unknown.
	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		if err := model.UnmarshalText([]byte(cfg.Model)); err != nil {
			return nil, fmt.Errorf("openai embedder: model %q: %w", cfg.Model, err)
		}
		if model == openai.Unknown {
			return nil, fmt.Errorf("openai embedder: unknown model %q", cfg.Model)
		}
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536 // Default dimension for AdaEmbeddingV2
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedder: no data returned: %w", embedder.ErrProviderUnavailable)
	}

	return toFloat64(resp.Data[0].Embedding), nil
}

// EmbedBatch converts multiple texts to vectors in a single API call.
//
// The response must contain exactly one vector per input text; a count
// mismatch is reported as an error rather than silently realigned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		embeddings[i] = toFloat64(data.Embedding)
	}

	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client. The OpenAI SDK client does not require explicit
// closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

// classifyAPIError maps API failures onto the embedder error taxonomy so that
// callers can distinguish retryable failures from permanent ones.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("openai embedder: %v: %w", err, embedder.ErrProviderRateLimited)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("openai embedder: %v: %w", err, embedder.ErrProviderUnavailable)
		default:
			return fmt.Errorf("openai embedder: %w", err)
		}
	}
	// Transport-level failures (connection refused, DNS, timeouts).
	return fmt.Errorf("openai embedder: %v: %w", err, embedder.ErrProviderUnavailable)
}

// toFloat64 converts the API's float32 vector to float64.
func toFloat64(embedding32 []float32) []float64 {
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64
}
