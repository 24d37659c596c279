package embedder_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmem/devmem-go/pkg/embedder"
)

// fakeProvider returns canned vectors or a fixed error.
type fakeProvider struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return len(f.vector) }
func (f *fakeProvider) Close() error    { return nil }

func TestIsRetryable(t *testing.T) {
	assert.True(t, embedder.IsRetryable(embedder.ErrProviderUnavailable))
	assert.True(t, embedder.IsRetryable(embedder.ErrProviderRateLimited))
	assert.False(t, embedder.IsRetryable(errors.New("invalid api key")))
	assert.False(t, embedder.IsRetryable(nil))
}

func TestFallback_PrimaryHealthy(t *testing.T) {
	primary := &fakeProvider{vector: []float64{1, 0}}
	secondary := &fakeProvider{vector: []float64{0, 1}}
	fb := embedder.NewFallback(primary, secondary)

	vec, err := fb.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
	assert.Zero(t, secondary.calls)
}

func TestFallback_RetryableFailsOver(t *testing.T) {
	primary := &fakeProvider{err: embedder.ErrProviderRateLimited}
	secondary := &fakeProvider{vector: []float64{0, 1}}
	fb := embedder.NewFallback(primary, secondary)

	vec, err := fb.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, vec)

	batch, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestFallback_NonRetryablePropagates(t *testing.T) {
	authErr := errors.New("invalid api key")
	primary := &fakeProvider{err: authErr}
	secondary := &fakeProvider{vector: []float64{0, 1}}
	fb := embedder.NewFallback(primary, secondary)

	_, err := fb.Embed(context.Background(), "text")
	require.ErrorIs(t, err, authErr)
	assert.Zero(t, secondary.calls)
}
