// Package ingest provides the asynchronous batch-and-embed path from raw
// submission to persisted, searchable item.
//
// Producers submit items without waiting for embedding latency; a single
// background worker drains the queue, forms batches bounded by both size and
// wait time, requests embeddings once per batch, and commits each item to its
// category's collection. Failures on this path are reported to a failure sink
// and the log, never back into a producer's synchronous flow.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/devmem/devmem-go/pkg/embedder"
	"github.com/devmem/devmem-go/pkg/metrics"
	"github.com/devmem/devmem-go/pkg/storage"
)

// Predefined errors for submission failures.
var (
	// ErrQueueClosed indicates the pipeline is shutting down and no longer
	// accepts submissions.
	ErrQueueClosed = errors.New("ingestion queue closed")

	// ErrQueueFull indicates the queue is saturated. This is an overload
	// signal; Submit never blocks the producer.
	ErrQueueFull = errors.New("ingestion queue full")

	// ErrIngestionFailed indicates a batch exhausted its embedding retries.
	// The affected items are preserved and handed to the failure sink.
	ErrIngestionFailed = errors.New("ingestion failed")
)

// FailureSink receives items that could not be ingested, with their original
// content preserved for replay. Called from the worker goroutine.
type FailureSink func(items []*storage.Item, err error)

// Config contains configuration for the ingestion pipeline.
type Config struct {
	// MaxBatchSize closes a batch when it reaches this many items. Default 10.
	MaxBatchSize int

	// MaxBatchWait closes a batch this long after its oldest item arrived,
	// bounding the latency of any single item. Default 5s.
	MaxBatchWait time.Duration

	// MaxRetries bounds embedding retries per batch. Default 3.
	MaxRetries int

	// QueueSize is the submission queue capacity. Default 1024.
	QueueSize int

	// OnFailure receives failed batches. Optional.
	OnFailure FailureSink
}

func (c *Config) withDefaults() Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return cfg
}

// Pipeline is the asynchronous ingestion pipeline.
//
// Submit is safe for concurrent producers. A single worker goroutine owns the
// batching state; embedding and persistence are the only points where it
// blocks on I/O.
type Pipeline struct {
	cfg      Config
	embedder embedder.Provider
	registry *storage.Registry
	logger   zerolog.Logger
	metrics  *metrics.Manager

	queue chan *storage.Item
	kick  chan struct{}

	mu     sync.Mutex
	closed bool

	// pendingCount tracks items accepted but not yet committed or failed.
	// idle is non-nil while pendingCount > 0 and is closed when the count
	// returns to zero, waking Drain waiters without parking a goroutine.
	pendingCount int
	idle         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// leftover holds items abandoned by a timed-out shutdown.
	// Written only by the worker before done is closed.
	leftover []*storage.Item
}

// New creates and starts an ingestion pipeline.
func New(cfg *Config, provider embedder.Provider, registry *storage.Registry, logger zerolog.Logger, m *metrics.Manager) *Pipeline {
	if m == nil {
		m = metrics.NoOpManager()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:      cfg.withDefaults(),
		embedder: provider,
		registry: registry,
		logger:   logger.With().Str("component", "ingest_pipeline").Logger(),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	p.queue = make(chan *storage.Item, p.cfg.QueueSize)
	p.kick = make(chan struct{}, 1)

	go p.run()
	return p
}

// Submit enqueues an item for ingestion. Non-blocking.
//
// Returns ErrQueueClosed once shutdown has begun and ErrQueueFull when the
// queue is saturated; both leave the item with the caller.
func (p *Pipeline) Submit(item *storage.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrQueueClosed
	}

	select {
	case p.queue <- item:
		p.pendingCount++
		if p.pendingCount == 1 {
			p.idle = make(chan struct{})
		}
		p.metrics.RecordSubmitted()
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of items currently waiting in the queue.
func (p *Pipeline) QueueDepth() int {
	return len(p.queue)
}

// Drain forces a flush and blocks until every item submitted before the call
// has been committed or explicitly failed, or ctx expires.
func (p *Pipeline) Drain(ctx context.Context) error {
	select {
	case p.kick <- struct{}{}:
	default:
	}

	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle marks n items as committed, failed or abandoned, waking Drain
// waiters when nothing remains in flight.
func (p *Pipeline) settle(n int) {
	if n == 0 {
		return
	}
	p.mu.Lock()
	p.pendingCount -= n
	if p.pendingCount == 0 && p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
	p.mu.Unlock()
}

// Shutdown stops accepting submissions and drains in-flight work for up to
// timeout. Items that could not be committed in time are returned to the
// caller rather than lost.
func (p *Pipeline) Shutdown(timeout time.Duration) []*storage.Item {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return p.leftover
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-time.After(timeout):
		p.cancel()
		<-p.done
	}

	p.cancel()
	return p.leftover
}

// run is the single background worker that drains the queue.
//
// A batch closes when it reaches MaxBatchSize or when MaxBatchWait has passed
// since its oldest item arrived, whichever comes first.
func (p *Pipeline) run() {
	defer close(p.done)

	var batch []*storage.Item
	timer := time.NewTimer(p.cfg.MaxBatchWait)
	stopTimer(timer)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		stopTimer(timer)
		p.flush(batch)
		batch = nil
	}

	for {
		select {
		case <-p.ctx.Done():
			p.abandon(batch)
			return

		case item, ok := <-p.queue:
			if !ok {
				flush()
				return
			}
			p.metrics.SetQueueDepth(len(p.queue))
			batch = append(batch, item)
			if len(batch) == 1 {
				timer.Reset(p.cfg.MaxBatchWait)
			}
			if len(batch) >= p.cfg.MaxBatchSize {
				flush()
			}

		case <-timer.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = nil
			}

		case <-p.kick:
			batch = p.gatherAvailable(batch)
			flush()
		}
	}
}

// gatherAvailable pulls everything immediately available off the queue so a
// Drain flush covers queued items, not just the current batch.
func (p *Pipeline) gatherAvailable(batch []*storage.Item) []*storage.Item {
	for {
		select {
		case item, ok := <-p.queue:
			if !ok {
				return batch
			}
			batch = append(batch, item)
			if len(batch) >= p.cfg.MaxBatchSize {
				p.flush(batch)
				batch = nil
			}
		default:
			return batch
		}
	}
}

// flush embeds a batch with bounded retries and persists each item into its
// category's collection.
func (p *Pipeline) flush(batch []*storage.Item) {
	start := time.Now()

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.Content
	}

	var vectors [][]float64
	operation := func() error {
		v, err := p.embedder.EmbedBatch(p.ctx, texts)
		if err != nil {
			if embedder.IsRetryable(err) {
				p.metrics.RecordEmbedRetry()
				p.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("embedding failed, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		vectors = v
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxRetries)),
		p.ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		p.failBatch(batch, fmt.Errorf("%w: %w", err, ErrIngestionFailed))
		return
	}

	if len(vectors) != len(batch) {
		p.failBatch(batch, fmt.Errorf("got %d embeddings for %d items: %w", len(vectors), len(batch), ErrIngestionFailed))
		return
	}

	for i, item := range batch {
		item.Embedding = vectors[i]
		p.persist(item)
	}

	p.metrics.RecordBatchFlushed(len(batch), time.Since(start))
	p.logger.Debug().Int("batch_size", len(batch)).Dur("elapsed", time.Since(start)).Msg("batch flushed")
}

// persist commits one embedded item into its collection. Per-item failures
// (dimension mismatch, unavailable collection) fail that item only.
func (p *Pipeline) persist(item *storage.Item) {
	defer p.settle(1)

	store, err := p.registry.Get(item.Category)
	if err != nil {
		p.failItem(item, err, "collection_unavailable")
		return
	}

	if err := store.InsertOrReplace(p.ctx, item); err != nil {
		reason := "storage"
		if errors.Is(err, storage.ErrDimensionMismatch) {
			reason = "dimension_mismatch"
		}
		p.failItem(item, err, reason)
		return
	}

	p.metrics.RecordCommitted(item.Category)
}

// failItem reports a single failed item with its content preserved.
func (p *Pipeline) failItem(item *storage.Item, err error, reason string) {
	p.metrics.RecordItemFailed(reason)
	p.logger.Error().Err(err).
		Int64("id", item.ID).
		Str("category", item.Category).
		Str("content", item.Content).
		Msg("item ingestion failed")
	if p.cfg.OnFailure != nil {
		p.cfg.OnFailure([]*storage.Item{item}, err)
	}
}

// failBatch reports a whole batch as failed. If the failure was caused by
// shutdown cancellation, the items are returned via Shutdown instead of the
// failure sink.
func (p *Pipeline) failBatch(batch []*storage.Item, err error) {
	defer p.settle(len(batch))

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.leftover = append(p.leftover, batch...)
		return
	}

	p.metrics.RecordBatchFailure()
	for _, item := range batch {
		p.metrics.RecordItemFailed("embedding")
		p.logger.Error().Err(err).
			Int64("id", item.ID).
			Str("category", item.Category).
			Str("content", item.Content).
			Msg("item ingestion failed")
	}
	if p.cfg.OnFailure != nil {
		p.cfg.OnFailure(batch, err)
	}
}

// abandon records items stranded by a timed-out shutdown as leftover.
// Items already accounted for by failBatch are not re-counted.
func (p *Pipeline) abandon(batch []*storage.Item) {
	stranded := len(batch)
	p.leftover = append(p.leftover, batch...)

	drained := false
	for !drained {
		select {
		case item, ok := <-p.queue:
			if !ok {
				drained = true
				break
			}
			p.leftover = append(p.leftover, item)
			stranded++
		default:
			drained = true
		}
	}

	p.settle(stranded)
	if len(p.leftover) > 0 {
		p.logger.Warn().Int("count", len(p.leftover)).Msg("shutdown abandoned uncommitted items")
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
