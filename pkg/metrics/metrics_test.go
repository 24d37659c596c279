package metrics_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmem/devmem-go/pkg/metrics"
)

func recordEverything(m *metrics.Manager) {
	m.RecordSubmitted()
	m.RecordCommitted("error")
	m.RecordItemFailed("embedding")
	m.RecordBatchFlushed(10, 120*time.Millisecond)
	m.RecordBatchFailure()
	m.RecordEmbedRetry()
	m.SetQueueDepth(3)
	m.RecordSearch("hit", 5*time.Millisecond)
}

func TestManager_Enabled(t *testing.T) {
	m := metrics.NewManager(metrics.DefaultConfig())
	require.True(t, m.Enabled())

	recordEverything(m)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "memory_items_submitted_total")
	assert.Contains(t, body, "memory_items_committed_total")
	assert.Contains(t, body, "memory_searches_total")
	assert.Contains(t, body, "memory_queue_depth")
}

func TestNoOpManager(t *testing.T) {
	m := metrics.NoOpManager()
	assert.False(t, m.Enabled())

	// Recording against a disabled manager must not panic.
	recordEverything(m)
}
