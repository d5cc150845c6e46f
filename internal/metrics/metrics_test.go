package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.fetched, "fetched counter should be initialized")
	assert.NotNil(t, collector.filtered, "filtered counter should be initialized")
	assert.NotNil(t, collector.archived, "archived counter should be initialized")
	assert.NotNil(t, collector.failed, "failed counter should be initialized")
	assert.NotNil(t, collector.retimeSkipped, "retimeSkipped counter should be initialized")
	assert.NotNil(t, collector.syncDuration, "syncDuration histogram should be initialized")
	assert.NotNil(t, collector.cursor, "cursor gauge should be initialized")
	assert.NotNil(t, collector.lastSync, "lastSync gauge should be initialized")
}

func TestRecordFetched(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	collector.RecordFetched(10, 7)
	collector.RecordFetched(3, 3)

	assert.Equal(t, 13.0, testutil.ToFloat64(collector.fetched))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.filtered))
}

func TestRecordArchived(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	collector.SetCursor(100)
	collector.RecordArchived(150)
	collector.RecordArchived(200)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.archived))
	assert.Equal(t, 200.0, testutil.ToFloat64(collector.cursor))
}

func TestRecordFailures(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	collector.RecordFailed()
	collector.RecordFailed()
	collector.RecordRetimeSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.failed))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.retimeSkipped))
}

func TestRecordSync(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	finished := time.Unix(1700000000, 0)
	collector.RecordSync(3*time.Second, finished)

	assert.Equal(t, 1700000000.0, testutil.ToFloat64(collector.lastSync))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.syncDuration))
}

func TestNilCollector(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordFetched(1, 1)
		collector.RecordArchived(1)
		collector.RecordFailed()
		collector.RecordRetimeSkipped()
		collector.SetCursor(1)
		collector.RecordSync(time.Second, time.Now())
	}, "nil collector should be a no-op")
}

func TestWriteTextfile(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()
	collector.RecordArchived(42)

	path := filepath.Join(t.TempDir(), "archive.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "archive_submissions_archived_total 1")
	assert.Contains(t, string(data), "archive_cursor_epoch_seconds 42")
}

func TestHandler(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()
	collector.RecordFailed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archive_submissions_failed_total 1")
}
