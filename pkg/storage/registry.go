package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Factory opens the collection store for a category.
type Factory func(category string) (Store, error)

// Registry maps categories to their collection stores.
//
// Collections are created lazily on first use and persist for the lifetime of
// the registry. The registry is owned by the facade and passed by handle to the
// ingestion pipeline and retrieval engine; there is no ambient global state.
//
// A category whose store cannot be opened is reported as unavailable for that
// call; the failure is not cached, so a backend that recovers becomes usable
// again without a restart. Other categories are unaffected.
type Registry struct {
	mu      sync.RWMutex
	factory Factory
	stores  map[string]Store
	logger  zerolog.Logger
}

// NewRegistry creates a registry using factory to open collection stores.
func NewRegistry(factory Factory, logger zerolog.Logger) *Registry {
	return &Registry{
		factory: factory,
		stores:  make(map[string]Store),
		logger:  logger.With().Str("component", "collection_registry").Logger(),
	}
}

// Get returns the store for category, opening it on first use.
func (r *Registry) Get(category string) (Store, error) {
	r.mu.RLock()
	store, ok := r.stores[category]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have opened it.
	if store, ok := r.stores[category]; ok {
		return store, nil
	}

	store, err := r.factory(category)
	if err != nil {
		r.logger.Error().Err(err).Str("category", category).Msg("failed to open collection")
		return nil, fmt.Errorf("open collection %q: %v: %w", category, err, ErrCollectionUnavailable)
	}

	r.logger.Info().Str("category", category).Msg("collection opened")
	r.stores[category] = store
	return store, nil
}

// Open eagerly opens stores for the given categories.
//
// Used at startup, where an unopenable collection is fatal rather than a
// degraded-mode condition.
func (r *Registry) Open(categories ...string) error {
	for _, category := range categories {
		if _, err := r.Get(category); err != nil {
			return err
		}
	}
	return nil
}

// Categories returns the sorted list of currently open categories.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]string, 0, len(r.stores))
	for category := range r.stores {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// CloseAll closes every open store, returning the first error encountered.
// The registry must not be used after CloseAll.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for category, store := range r.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close collection %q: %w", category, err)
		}
		delete(r.stores, category)
	}
	return firstErr
}
