// Package metrics provides Prometheus instrumentation for the memory store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the memory store.
//
// A disabled manager is a safe no-op, so instrumented code never has to check
// whether metrics are configured.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Ingestion metrics
	itemsSubmitted prometheus.Counter
	itemsCommitted *prometheus.CounterVec
	itemsFailed    *prometheus.CounterVec
	batchesFlushed prometheus.Counter
	batchFailures  prometheus.Counter
	embedRetries   prometheus.Counter
	batchSize      prometheus.Histogram
	flushDuration  prometheus.Histogram
	queueDepth     prometheus.Gauge

	// Retrieval metrics
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool

	// Histogram bucket configurations
	FlushDurationBuckets  []float64
	SearchDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		FlushDurationBuckets:  []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		SearchDurationBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initIngestMetrics(cfg)
	m.initRetrievalMetrics(cfg)

	return m
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) initIngestMetrics(cfg Config) {
	m.itemsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memory_items_submitted_total",
		Help: "Total number of memory items accepted into the ingestion queue",
	})
	m.itemsCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memory_items_committed_total",
		Help: "Total number of memory items persisted, by category",
	}, []string{"category"})
	m.itemsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memory_items_failed_total",
		Help: "Total number of memory items that failed ingestion, by reason",
	}, []string{"reason"})
	m.batchesFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memory_batches_flushed_total",
		Help: "Total number of embedding batches flushed",
	})
	m.batchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memory_batch_failures_total",
		Help: "Total number of batches that exhausted embedding retries",
	})
	m.embedRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memory_embed_retries_total",
		Help: "Total number of embedding call retries",
	})
	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "memory_batch_size",
		Help:    "Number of items per flushed batch",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
	m.flushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "memory_flush_duration_seconds",
		Help:    "Batch flush duration (embed + persist) in seconds",
		Buckets: cfg.FlushDurationBuckets,
	})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_queue_depth",
		Help: "Current number of items waiting in the ingestion queue",
	})

	m.registry.MustRegister(
		m.itemsSubmitted, m.itemsCommitted, m.itemsFailed,
		m.batchesFlushed, m.batchFailures, m.embedRetries,
		m.batchSize, m.flushDuration, m.queueDepth,
	)
}

func (m *Manager) initRetrievalMetrics(cfg Config) {
	m.searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memory_searches_total",
		Help: "Total number of similarity searches, by outcome",
	}, []string{"outcome"})
	m.searchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "memory_search_duration_seconds",
		Help:    "Similarity search duration in seconds",
		Buckets: cfg.SearchDurationBuckets,
	})

	m.registry.MustRegister(m.searches, m.searchDuration)
}

// RecordSubmitted records an item accepted into the queue.
func (m *Manager) RecordSubmitted() {
	if !m.enabled {
		return
	}
	m.itemsSubmitted.Inc()
}

// RecordCommitted records an item persisted to its collection.
func (m *Manager) RecordCommitted(category string) {
	if !m.enabled {
		return
	}
	m.itemsCommitted.WithLabelValues(category).Inc()
}

// RecordItemFailed records an item that failed ingestion.
func (m *Manager) RecordItemFailed(reason string) {
	if !m.enabled {
		return
	}
	m.itemsFailed.WithLabelValues(reason).Inc()
}

// RecordBatchFlushed records a flushed batch and its size and duration.
func (m *Manager) RecordBatchFlushed(size int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.batchesFlushed.Inc()
	m.batchSize.Observe(float64(size))
	m.flushDuration.Observe(duration.Seconds())
}

// RecordBatchFailure records a batch that exhausted its retries.
func (m *Manager) RecordBatchFailure() {
	if !m.enabled {
		return
	}
	m.batchFailures.Inc()
}

// RecordEmbedRetry records a retried embedding call.
func (m *Manager) RecordEmbedRetry() {
	if !m.enabled {
		return
	}
	m.embedRetries.Inc()
}

// SetQueueDepth updates the queue depth gauge.
func (m *Manager) SetQueueDepth(depth int) {
	if !m.enabled {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordSearch records a search and its duration.
func (m *Manager) RecordSearch(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(duration.Seconds())
}
