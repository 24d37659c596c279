package core

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"github.com/devmem/devmem-go/pkg/classify"
	"github.com/devmem/devmem-go/pkg/embedder"
	localEmbedder "github.com/devmem/devmem-go/pkg/embedder/local"
	openaiEmbedder "github.com/devmem/devmem-go/pkg/embedder/openai"
	"github.com/devmem/devmem-go/pkg/ingest"
	"github.com/devmem/devmem-go/pkg/metrics"
	"github.com/devmem/devmem-go/pkg/rerank"
	"github.com/devmem/devmem-go/pkg/retrieval"
	"github.com/devmem/devmem-go/pkg/storage"
	postgresStore "github.com/devmem/devmem-go/pkg/storage/postgres"
	sqliteStore "github.com/devmem/devmem-go/pkg/storage/sqlite"
)

// defaultShutdownTimeout bounds how long Close waits for in-flight
// ingestion before abandoning it.
const defaultShutdownTimeout = 10 * time.Second

// Agent is the main memory agent facade.
//
// It provides a complete interface for recording, retrieving, and managing
// developer memories:
//   - Asynchronous ingestion with batched embedding
//   - Semantic search across per-category collections
//   - Context-aware retrieval blending similarity with working context
//   - Stats reporting and privacy erasure
//
// The agent is thread-safe and can be used concurrently from multiple
// goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	agent, _ := core.NewAgent(config, logger)
//	defer agent.Close()
//
//	id, _ := agent.RememberErrorSolution(ctx,
//	    "connection refused: dial tcp 127.0.0.1:5432",
//	    "postgres was not running; added a health check",
//	)
type Agent struct {
	// config contains the agent configuration.
	config *Config

	// registry maps categories to their collection stores.
	registry *storage.Registry

	// embedder is the embedding provider for vector generation.
	embedder embedder.Provider

	// pipeline is the asynchronous ingestion pipeline.
	pipeline *ingest.Pipeline

	// engine performs semantic search across collections.
	engine *retrieval.Engine

	// reranker blends similarity with working-context overlap.
	reranker *rerank.Reranker

	// metrics collects Prometheus metrics.
	metrics *metrics.Manager

	// node generates unique IDs for memories.
	node *snowflake.Node

	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewAgent creates a new memory agent.
//
// Every built-in category's collection is opened eagerly so that a broken
// storage configuration fails here rather than on first use.
func NewAgent(cfg *Config, logger zerolog.Logger) (*Agent, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewStoreError("NewAgent", err)
	}

	provider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, NewStoreError("NewAgent", err)
	}

	registry := storage.NewRegistry(storageFactory(cfg, provider.Dimensions()), logger)

	categories := make([]string, len(Categories))
	for i, c := range Categories {
		categories[i] = string(c)
	}
	if err := registry.Open(categories...); err != nil {
		return nil, NewStoreError("NewAgent", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewStoreError("NewAgent", err)
	}

	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		mcfg := metrics.DefaultConfig()
		m = metrics.NewManager(mcfg)
	} else {
		m = metrics.NoOpManager()
	}

	agent := &Agent{
		config:   cfg,
		registry: registry,
		embedder: provider,
		engine:   retrieval.NewEngine(registry, provider, logger, m),
		reranker: rerank.New(rerankWeights(cfg.Rerank), rerankBlend(cfg.Rerank)),
		metrics:  m,
		node:     node,
		logger:   logger.With().Str("component", "agent").Logger(),
	}

	agent.pipeline = ingest.New(&ingest.Config{
		MaxBatchSize: cfg.Ingest.MaxBatchSize,
		MaxBatchWait: cfg.Ingest.MaxBatchWait,
		MaxRetries:   cfg.Ingest.MaxRetries,
		QueueSize:    cfg.Ingest.QueueSize,
	}, provider, registry, logger, m)

	return agent, nil
}

// initEmbedder creates the embedding provider from configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		if !cfg.Fallback {
			return client, nil
		}
		// The fallback must produce vectors of the same dimensionality as
		// the primary, or the collections would reject them.
		local, err := localEmbedder.NewClient(&localEmbedder.Config{
			Dimensions: client.Dimensions(),
		})
		if err != nil {
			return nil, err
		}
		return embedder.NewFallback(client, local), nil

	case "local", "":
		return localEmbedder.NewClient(&localEmbedder.Config{
			Dimensions: cfg.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// storageFactory returns the per-category collection factory for the
// configured backend.
func storageFactory(cfg *Config, dimensions int) storage.Factory {
	switch cfg.Storage.Provider {
	case "postgres":
		return func(category string) (storage.Store, error) {
			store, err := postgresStore.NewStore(&postgresStore.Config{
				Host:       cfg.Storage.Host,
				Port:       cfg.Storage.Port,
				User:       cfg.Storage.User,
				Password:   cfg.Storage.Password,
				DBName:     cfg.Storage.Database,
				SSLMode:    cfg.Storage.SSLMode,
				Category:   category,
				Dimensions: dimensions,
			})
			if err != nil {
				return nil, err
			}
			if cfg.Storage.IndexType != "" {
				indexType := postgresStore.IndexType(cfg.Storage.IndexType)
				if err := store.CreateIndex(context.Background(), indexType); err != nil {
					store.Close()
					return nil, err
				}
			}
			return store, nil
		}
	default:
		// One database file per collection keeps every category an
		// independent durable unit.
		return func(category string) (storage.Store, error) {
			return sqliteStore.NewStore(&sqliteStore.Config{
				Path:       filepath.Join(cfg.Storage.Path, category+".db"),
				Category:   category,
				Dimensions: dimensions,
			})
		}
	}
}

func rerankWeights(cfg RerankConfig) rerank.Weights {
	return rerank.Weights{
		File:      cfg.FileWeight,
		Directory: cfg.DirectoryWeight,
		Project:   cfg.ProjectWeight,
		Branch:    cfg.BranchWeight,
		Language:  cfg.LanguageWeight,
	}
}

func rerankBlend(cfg RerankConfig) rerank.Blend {
	return rerank.Blend{
		Similarity: cfg.SimilarityBlend,
		Context:    cfg.ContextBlend,
	}
}

// Remember records a memory in the given category.
//
// The call enqueues the item and returns its assigned ID immediately;
// embedding and persistence happen asynchronously. The item becomes
// searchable once its batch has been committed (use Flush to wait).
func (a *Agent) Remember(ctx context.Context, category Category, content string, opts ...RememberOption) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, NewStoreError("Remember", err)
	}
	if !validCategory(category) {
		return 0, NewStoreError("Remember", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category))
	}
	if strings.TrimSpace(content) == "" {
		return 0, NewStoreError("Remember", fmt.Errorf("%w: empty content", ErrInvalidInput))
	}

	options := &RememberOptions{}
	for _, opt := range opts {
		opt(options)
	}

	item := &MemoryItem{
		ID:        a.node.Generate().Int64(),
		Category:  category,
		Content:   content,
		Context:   options.Context,
		Metadata:  options.Metadata,
		CreatedAt: time.Now(),
	}

	// Owner may arrive through the explicit option, the working context, or
	// metadata. All three must feed the owner column or erasure would miss
	// the item.
	owner := options.Owner
	if owner == "" && options.Context != nil {
		owner = options.Context[ContextKeyOwner]
	}
	if owner == "" && options.Metadata != nil {
		if v, ok := options.Metadata[ContextKeyOwner].(string); ok {
			owner = v
		}
	}

	if err := a.pipeline.Submit(toStorageItem(item, owner)); err != nil {
		return 0, NewStoreError("Remember", err)
	}

	a.logger.Debug().
		Int64("id", item.ID).
		Str("category", string(category)).
		Msg("memory enqueued")

	return item.ID, nil
}

// RememberConversation records a dialogue exchange between the developer and
// the assistant. Both sides are kept in the content so the exchange is
// searchable as a whole.
func (a *Agent) RememberConversation(ctx context.Context, userMsg, assistantMsg string, opts ...RememberOption) (int64, error) {
	content := fmt.Sprintf("User: %s\nAssistant: %s", userMsg, assistantMsg)
	opts = append(opts, withDerivedMetadata(map[string]interface{}{
		"user_message":      userMsg,
		"assistant_message": assistantMsg,
	}))
	return a.Remember(ctx, CategoryConversation, content, opts...)
}

// RememberCodeAnalysis records an analysis of a file. The path also lands in
// the working context so contextual retrieval can match on it.
func (a *Agent) RememberCodeAnalysis(ctx context.Context, filePath, analysis string, opts ...RememberOption) (int64, error) {
	opts = append(opts,
		withDerivedMetadata(map[string]interface{}{
			"path": filePath,
		}),
		withDerivedContext(ContextKeyFile, filePath),
	)
	return a.Remember(ctx, CategoryCode, analysis, opts...)
}

// RememberTaskCompletion records a completed work item and its outcome. The
// task kind (feature, bugfix, refactor, test, docs) is classified from the
// text.
func (a *Agent) RememberTaskCompletion(ctx context.Context, task, outcome string, opts ...RememberOption) (int64, error) {
	opts = append(opts, withDerivedMetadata(map[string]interface{}{
		"outcome": outcome,
		"kind":    classify.Task(task),
	}))
	return a.Remember(ctx, CategoryTask, task, opts...)
}

// RememberDecision records a design decision and the rationale behind it.
func (a *Agent) RememberDecision(ctx context.Context, decision, rationale string, opts ...RememberOption) (int64, error) {
	opts = append(opts, withDerivedMetadata(map[string]interface{}{
		"rationale": rationale,
	}))
	return a.Remember(ctx, CategoryDecision, decision, opts...)
}

// RememberErrorSolution records an error message and how it was solved. The
// error kind (syntax, import, network, permission, memory, type) is
// classified from the message; unrecognized errors classify as "general".
func (a *Agent) RememberErrorSolution(ctx context.Context, errText, solution string, opts ...RememberOption) (int64, error) {
	opts = append(opts, withDerivedMetadata(map[string]interface{}{
		"solution": solution,
		"kind":     classify.Error(errText),
	}))
	return a.Remember(ctx, CategoryError, errText, opts...)
}

// RememberPattern records a recurring code or workflow pattern.
func (a *Agent) RememberPattern(ctx context.Context, description string, opts ...RememberOption) (int64, error) {
	return a.Remember(ctx, CategoryPattern, description, opts...)
}

// RememberFile records knowledge about a file, such as a summary or
// annotation. path also lands in the working context.
func (a *Agent) RememberFile(ctx context.Context, path, note string, opts ...RememberOption) (int64, error) {
	opts = append(opts,
		withDerivedMetadata(map[string]interface{}{
			"path": path,
		}),
		withDerivedContext(ContextKeyFile, path),
	)
	return a.Remember(ctx, CategoryFile, note, opts...)
}

// Search performs semantic search across collections.
//
// Results carry raw cosine similarity as their relevance score. Collections
// that cannot be searched are reported in the result, not treated as
// failures.
func (a *Agent) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResult, error) {
	options := newSearchOptions(opts)

	result, err := a.engine.Search(ctx, retrieval.Query{
		Text:       query,
		Categories: categoryNames(options.Categories),
		Owner:      options.Owner,
		Threshold:  a.threshold(options),
		Limit:      a.limit(options),
		Since:      sinceFromWindow(options.Window),
	})
	if err != nil {
		return nil, NewStoreError("Search", err)
	}

	return &SearchResult{
		Items:       fromStorageItems(result.Items),
		Unavailable: result.Unavailable,
	}, nil
}

// GetContextualMemory retrieves memories relevant to both the query and the
// current working context.
//
// The similarity threshold is broadened relative to plain search so that
// borderline matches with strong context overlap can surface. Each candidate
// is then re-ranked by blending its similarity with its structural context
// overlap (file, project, branch, language) against currentContext.
func (a *Agent) GetContextualMemory(ctx context.Context, query string, currentContext map[string]string, opts ...SearchOption) (*SearchResult, error) {
	options := newSearchOptions(opts)
	limit := a.limit(options)

	threshold := options.Threshold
	if threshold < 0 {
		threshold = a.config.Retrieval.ContextualThreshold
		if threshold == 0 {
			threshold = 0.5
		}
	}

	// Over-fetch candidates so re-ranking has borderline matches to promote.
	result, err := a.engine.Search(ctx, retrieval.Query{
		Text:       query,
		Categories: categoryNames(options.Categories),
		Owner:      options.Owner,
		Threshold:  threshold,
		Limit:      limit * 3,
		Since:      sinceFromWindow(options.Window),
	})
	if err != nil {
		return nil, NewStoreError("GetContextualMemory", err)
	}

	items := fromStorageItems(result.Items)
	for _, item := range items {
		item.ContextScore = a.reranker.Score(currentContext, item.Context)
		item.RelevanceScore = a.reranker.Blended(item.SimilarityScore, item.ContextScore)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
	if len(items) > limit {
		items = items[:limit]
	}

	return &SearchResult{
		Items:       items,
		Unavailable: result.Unavailable,
	}, nil
}

// Delete removes one memory by category and ID. Deleting an absent ID is a
// no-op success.
func (a *Agent) Delete(ctx context.Context, category Category, id int64) error {
	store, err := a.registry.Get(string(category))
	if err != nil {
		return NewStoreError("Delete", err)
	}
	return NewStoreError("Delete", store.Delete(ctx, id))
}

// GetMemoryStats reports item counts and approximate sizes per collection,
// plus the current ingestion queue depth.
func (a *Agent) GetMemoryStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Categories: make(map[Category]CategoryStats, len(Categories)),
		QueueDepth: a.pipeline.QueueDepth(),
	}

	for _, category := range Categories {
		store, err := a.registry.Get(string(category))
		if err != nil {
			return nil, NewStoreError("GetMemoryStats", err)
		}

		count, err := store.Count(ctx)
		if err != nil {
			return nil, NewStoreError("GetMemoryStats", err)
		}
		size, err := store.SizeBytes(ctx)
		if err != nil {
			return nil, NewStoreError("GetMemoryStats", err)
		}

		stats.Categories[category] = CategoryStats{Count: count, SizeBytes: size}
		stats.TotalItems += count
		stats.TotalSizeBytes += size
	}

	return stats, nil
}

// EraseUserData removes every memory belonging to the given owner across all
// collections. Destructive and irreversible.
//
// The pipeline is drained first so queued items for the owner cannot be
// committed after the erasure. Collections that could not be erased are
// listed in the report; the caller must retry until Failed is empty for the
// erasure to be complete.
func (a *Agent) EraseUserData(ctx context.Context, owner string) (*ErasureReport, error) {
	if owner == "" {
		return nil, NewStoreError("EraseUserData", fmt.Errorf("%w: empty owner", ErrInvalidInput))
	}

	if err := a.pipeline.Drain(ctx); err != nil {
		return nil, NewStoreError("EraseUserData", err)
	}

	report := &ErasureReport{Removed: make(map[Category]int64, len(Categories))}
	for _, category := range Categories {
		store, err := a.registry.Get(string(category))
		if err != nil {
			report.Failed = append(report.Failed, string(category))
			continue
		}

		removed, err := store.DeleteOwner(ctx, owner)
		if err != nil {
			a.logger.Error().Err(err).Str("category", string(category)).Msg("owner erasure failed")
			report.Failed = append(report.Failed, string(category))
			continue
		}
		report.Removed[category] = removed
		report.TotalRemoved += removed
	}

	a.logger.Info().
		Int64("removed", report.TotalRemoved).
		Int("failed_categories", len(report.Failed)).
		Msg("owner data erased")

	return report, nil
}

// Flush blocks until everything submitted before the call is searchable or
// has been reported as failed.
func (a *Agent) Flush(ctx context.Context) error {
	return NewStoreError("Flush", a.pipeline.Drain(ctx))
}

// MetricsHandler exposes the agent's Prometheus metrics over HTTP.
func (a *Agent) MetricsHandler() http.Handler {
	return a.metrics.Handler()
}

// Close shuts the agent down: the ingestion pipeline is drained (bounded by
// a timeout), then collections and the embedder are closed. Items that could
// not be committed in time are logged with their content preserved.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	leftover := a.pipeline.Shutdown(defaultShutdownTimeout)
	for _, item := range leftover {
		a.logger.Warn().
			Int64("id", item.ID).
			Str("category", item.Category).
			Str("content", item.Content).
			Msg("uncommitted memory lost at shutdown")
	}

	err := a.registry.CloseAll()
	if cerr := a.embedder.Close(); err == nil {
		err = cerr
	}
	return NewStoreError("Close", err)
}

// threshold resolves the effective similarity threshold for a plain search.
func (a *Agent) threshold(options *SearchOptions) float64 {
	if options.Threshold >= 0 {
		return options.Threshold
	}
	if a.config.Retrieval.Threshold > 0 {
		return a.config.Retrieval.Threshold
	}
	return 0.7
}

// limit resolves the effective result limit.
func (a *Agent) limit(options *SearchOptions) int {
	if options.Limit > 0 {
		return options.Limit
	}
	if a.config.Retrieval.DefaultLimit > 0 {
		return a.config.Retrieval.DefaultLimit
	}
	return 10
}

func validCategory(category Category) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

func categoryNames(categories []Category) []string {
	if len(categories) == 0 {
		return nil
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return names
}

func sinceFromWindow(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-window)
}

// withDerivedMetadata merges wrapper-derived metadata under any caller
// metadata; caller keys win.
func withDerivedMetadata(derived map[string]interface{}) RememberOption {
	return func(opts *RememberOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]interface{}, len(derived))
		}
		for k, v := range derived {
			if _, exists := opts.Metadata[k]; !exists {
				opts.Metadata[k] = v
			}
		}
	}
}

// withDerivedContext sets one context key unless the caller already set it.
func withDerivedContext(key, value string) RememberOption {
	return func(opts *RememberOptions) {
		if value == "" {
			return
		}
		if opts.Context == nil {
			opts.Context = make(map[string]string, 1)
		}
		if _, exists := opts.Context[key]; !exists {
			opts.Context[key] = value
		}
	}
}
