package retrieval_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmem/devmem-go/pkg/embedder/local"
	"github.com/devmem/devmem-go/pkg/retrieval"
	"github.com/devmem/devmem-go/pkg/storage"
	sqliteStore "github.com/devmem/devmem-go/pkg/storage/sqlite"
)

const testDims = 32

func setupEngine(t *testing.T) (*retrieval.Engine, *storage.Registry, *local.Client) {
	t.Helper()

	provider, err := local.NewClient(&local.Config{Dimensions: testDims})
	require.NoError(t, err)

	dir := t.TempDir()
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		return sqliteStore.NewStore(&sqliteStore.Config{
			Path:       filepath.Join(dir, category+".db"),
			Category:   category,
			Dimensions: testDims,
		})
	}, zerolog.Nop())
	t.Cleanup(func() { _ = registry.CloseAll() })

	return retrieval.NewEngine(registry, provider, zerolog.Nop(), nil), registry, provider
}

// seed inserts an item embedded with the engine's own provider, so querying
// with the identical text yields similarity 1.0.
func seed(t *testing.T, registry *storage.Registry, provider *local.Client, id int64, category, content string) {
	t.Helper()

	vec, err := provider.Embed(context.Background(), content)
	require.NoError(t, err)

	store, err := registry.Get(category)
	require.NoError(t, err)
	require.NoError(t, store.InsertOrReplace(context.Background(), &storage.Item{
		ID:        id,
		Category:  category,
		Content:   content,
		Embedding: vec,
	}))
}

func TestEngine_ExactMatchRanksFirst(t *testing.T) {
	engine, registry, provider := setupEngine(t)
	ctx := context.Background()

	seed(t, registry, provider, 1, "error", "connection pool exhausted")
	seed(t, registry, provider, 2, "error", "disk quota exceeded")

	result, err := engine.Search(ctx, retrieval.Query{
		Text:      "connection pool exhausted",
		Threshold: 0.9,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(1), result.Items[0].ID)
	assert.InDelta(t, 1.0, result.Items[0].Score, 1e-9)
	assert.Empty(t, result.Unavailable)
}

func TestEngine_SearchesAcrossCategories(t *testing.T) {
	engine, registry, provider := setupEngine(t)
	ctx := context.Background()

	seed(t, registry, provider, 1, "error", "shared phrase")
	seed(t, registry, provider, 2, "decision", "shared phrase")

	result, err := engine.Search(ctx, retrieval.Query{
		Text:      "shared phrase",
		Threshold: 0.9,
		Limit:     10,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)

	categories := []string{result.Items[0].Category, result.Items[1].Category}
	assert.ElementsMatch(t, []string{"error", "decision"}, categories)
}

func TestEngine_CategoryRestriction(t *testing.T) {
	engine, registry, provider := setupEngine(t)
	ctx := context.Background()

	seed(t, registry, provider, 1, "error", "shared phrase")
	seed(t, registry, provider, 2, "decision", "shared phrase")

	result, err := engine.Search(ctx, retrieval.Query{
		Text:       "shared phrase",
		Categories: []string{"decision"},
		Threshold:  0.9,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "decision", result.Items[0].Category)
}

func TestEngine_ThresholdMonotonicity(t *testing.T) {
	engine, registry, provider := setupEngine(t)
	ctx := context.Background()

	for i, content := range []string{
		"connection pool exhausted",
		"pool of connections ran dry",
		"completely unrelated gardening notes",
	} {
		seed(t, registry, provider, int64(i+1), "error", content)
	}

	var prevCount int
	first := true
	for _, threshold := range []float64{0.9, 0.5, 0.1, 0.0} {
		result, err := engine.Search(ctx, retrieval.Query{
			Text:      "connection pool exhausted",
			Threshold: threshold,
			Limit:     10,
		})
		require.NoError(t, err)

		// Lowering the threshold never removes results.
		if !first {
			assert.GreaterOrEqual(t, len(result.Items), prevCount)
		}
		prevCount = len(result.Items)
		first = false
	}
}

func TestEngine_ZeroLimit(t *testing.T) {
	engine, registry, provider := setupEngine(t)
	ctx := context.Background()

	seed(t, registry, provider, 1, "error", "something")

	result, err := engine.Search(ctx, retrieval.Query{Text: "something"})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestEngine_EmptyRegistry(t *testing.T) {
	engine, _, _ := setupEngine(t)

	result, err := engine.Search(context.Background(), retrieval.Query{
		Text:  "anything",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.Empty(t, result.Unavailable)
}

func TestEngine_UnavailableCollectionDegrades(t *testing.T) {
	provider, err := local.NewClient(&local.Config{Dimensions: testDims})
	require.NoError(t, err)

	dir := t.TempDir()
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		if category == "broken" {
			return nil, errors.New("cannot open")
		}
		return sqliteStore.NewStore(&sqliteStore.Config{
			Path:       filepath.Join(dir, category+".db"),
			Category:   category,
			Dimensions: testDims,
		})
	}, zerolog.Nop())
	t.Cleanup(func() { _ = registry.CloseAll() })

	engine := retrieval.NewEngine(registry, provider, zerolog.Nop(), nil)
	ctx := context.Background()

	seed(t, registry, provider, 1, "error", "shared phrase")

	result, err := engine.Search(ctx, retrieval.Query{
		Text:       "shared phrase",
		Categories: []string{"error", "broken"},
		Threshold:  0.9,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, []string{"broken"}, result.Unavailable)
}
