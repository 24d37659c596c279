package local_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmem/devmem-go/pkg/embedder/local"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	client, err := local.NewClient(nil)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := client.Embed(ctx, "connection pool exhausted")
	require.NoError(t, err)
	second, err := client.Embed(ctx, "connection pool exhausted")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLocalEmbedder_DistinctTexts(t *testing.T) {
	client, err := local.NewClient(nil)
	require.NoError(t, err)

	ctx := context.Background()

	a, err := client.Embed(ctx, "first text")
	require.NoError(t, err)
	b, err := client.Embed(ctx, "second text")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLocalEmbedder_UnitVector(t *testing.T) {
	client, err := local.NewClient(&local.Config{Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, client.Dimensions())

	vec, err := client.Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vec, 64)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestLocalEmbedder_BatchAlignment(t *testing.T) {
	client, err := local.NewClient(nil)
	require.NoError(t, err)

	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}

	batch, err := client.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := client.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch position %d does not match single embed of %q", i, text)
	}
}
