// Package retrieval implements semantic search across collection stores.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/devmem/devmem-go/pkg/embedder"
	"github.com/devmem/devmem-go/pkg/metrics"
	"github.com/devmem/devmem-go/pkg/storage"
)

// Query describes one search request.
type Query struct {
	// Text is the natural-language query to embed and match against.
	Text string

	// Categories restricts the search to these collections. Empty means
	// every registered collection.
	Categories []string

	// Owner restricts results to items recorded for this owner. Optional.
	Owner string

	// Threshold is the minimum cosine similarity for a result to qualify.
	// Zero admits everything.
	Threshold float64

	// Limit caps the merged result set. Zero yields an empty result.
	Limit int

	// Since excludes items created before this time when set.
	Since time.Time
}

// Result is the outcome of one search.
type Result struct {
	// Items holds qualifying matches ordered by descending similarity,
	// truncated to the query limit.
	Items []*storage.Item

	// Unavailable lists categories that could not be searched. A search
	// over the remaining collections still succeeds.
	Unavailable []string
}

// Engine embeds queries and fans them out across collection stores.
type Engine struct {
	registry *storage.Registry
	embedder embedder.Provider
	logger   zerolog.Logger
	metrics  *metrics.Manager
}

// NewEngine creates a retrieval engine over the given registry and provider.
func NewEngine(registry *storage.Registry, provider embedder.Provider, logger zerolog.Logger, m *metrics.Manager) *Engine {
	if m == nil {
		m = metrics.NoOpManager()
	}
	return &Engine{
		registry: registry,
		embedder: provider,
		logger:   logger.With().Str("component", "retrieval").Logger(),
		metrics:  m,
	}
}

// Search embeds the query once and queries each target collection, merging
// the per-collection results into a single ranked list.
//
// An unavailable collection is reported in the result and skipped; the
// search fails only when the query embedding itself cannot be produced.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	if q.Limit <= 0 {
		return &Result{}, nil
	}

	categories := q.Categories
	if len(categories) == 0 {
		categories = e.registry.Categories()
	}
	if len(categories) == 0 {
		return &Result{}, nil
	}

	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		e.metrics.RecordSearch("embed_error", time.Since(start))
		return nil, fmt.Errorf("embed query: %w", err)
	}

	opts := &storage.QueryOptions{
		Limit:    q.Limit,
		MinScore: q.Threshold,
		Owner:    q.Owner,
		Since:    q.Since,
	}

	result := &Result{}
	for _, category := range categories {
		store, err := e.registry.Get(category)
		if err != nil {
			e.logger.Warn().Err(err).Str("category", category).Msg("collection unavailable, skipping")
			result.Unavailable = append(result.Unavailable, category)
			continue
		}

		items, err := store.Query(ctx, vector, opts)
		if err != nil {
			e.logger.Warn().Err(err).Str("category", category).Msg("collection query failed, skipping")
			result.Unavailable = append(result.Unavailable, category)
			continue
		}
		result.Items = append(result.Items, items...)
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Score > result.Items[j].Score
	})
	if len(result.Items) > q.Limit {
		result.Items = result.Items[:q.Limit]
	}

	outcome := "hit"
	if len(result.Items) == 0 {
		outcome = "miss"
	}
	e.metrics.RecordSearch(outcome, time.Since(start))
	e.logger.Debug().
		Int("results", len(result.Items)).
		Int("categories", len(categories)).
		Dur("elapsed", time.Since(start)).
		Msg("search complete")

	return result, nil
}
