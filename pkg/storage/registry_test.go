package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmem/devmem-go/pkg/storage"
)

// stubStore is a minimal in-memory Store for registry tests.
type stubStore struct {
	category string
	closed   bool
}

func (s *stubStore) InsertOrReplace(ctx context.Context, item *storage.Item) error { return nil }
func (s *stubStore) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Item, error) {
	return nil, nil
}
func (s *stubStore) Delete(ctx context.Context, id int64) error                  { return nil }
func (s *stubStore) DeleteOwner(ctx context.Context, owner string) (int64, error) { return 0, nil }
func (s *stubStore) Count(ctx context.Context) (int64, error)                    { return 0, nil }
func (s *stubStore) SizeBytes(ctx context.Context) (int64, error)                { return 0, nil }
func (s *stubStore) Close() error {
	s.closed = true
	return nil
}

func TestRegistry_GetCachesStore(t *testing.T) {
	opened := 0
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		opened++
		return &stubStore{category: category}, nil
	}, zerolog.Nop())

	first, err := registry.Get("error")
	require.NoError(t, err)

	second, err := registry.Get("error")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, opened)
}

func TestRegistry_FailureIsNotCached(t *testing.T) {
	calls := 0
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("disk full")
		}
		return &stubStore{category: category}, nil
	}, zerolog.Nop())

	_, err := registry.Get("code")
	require.ErrorIs(t, err, storage.ErrCollectionUnavailable)

	// The collection recovers on the next attempt.
	store, err := registry.Get("code")
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.Equal(t, 2, calls)
}

func TestRegistry_OpenEager(t *testing.T) {
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		if category == "broken" {
			return nil, errors.New("cannot open")
		}
		return &stubStore{category: category}, nil
	}, zerolog.Nop())

	require.NoError(t, registry.Open("error", "code"))
	assert.Equal(t, []string{"code", "error"}, registry.Categories())

	err := registry.Open("broken")
	assert.Error(t, err)
}

func TestRegistry_CloseAll(t *testing.T) {
	stores := map[string]*stubStore{}
	registry := storage.NewRegistry(func(category string) (storage.Store, error) {
		s := &stubStore{category: category}
		stores[category] = s
		return s, nil
	}, zerolog.Nop())

	require.NoError(t, registry.Open("error", "code", "task"))
	require.NoError(t, registry.CloseAll())

	for category, s := range stores {
		assert.True(t, s.closed, "store %s not closed", category)
	}
	assert.Empty(t, registry.Categories())
}
