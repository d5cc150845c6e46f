// ============================================================================
// atcoder-archive Metrics - Prometheus 監控指標
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 收集和暴露同步過程的指標，支持 Prometheus 監控
//
// 指標分類:
//
//   1. 提交計數器 (Counter) - 累計值，只增不減：
//      - archive_submissions_fetched_total: 從 API 取得的提交數
//      - archive_submissions_filtered_total: 被過濾條件排除的提交數
//      - archive_submissions_archived_total: 成功寫入歷史的提交數
//      - archive_submissions_failed_total: 寫入失敗的提交數
//      - archive_retime_skipped_total: 時間改寫失敗（非 no-op）的次數
//
//   2. 性能指標 (Histogram)：
//      - archive_sync_duration_seconds: 單次同步耗時
//
//   3. 狀態指標 (Gauge)：
//      - archive_cursor_epoch_seconds: 目前游標（最新已歸檔提交的時間）
//      - archive_last_sync_timestamp_seconds: 最近一次同步完成時間
//
// 輸出方式:
//   - watch 指令: 通過 /metrics 端點暴露
//   - sync 指令: 寫入 node_exporter textfile（--metrics-file）
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector Prometheus 指標收集器
type Collector struct {
	// 提交相關指標
	fetched  prometheus.Counter
	filtered prometheus.Counter
	archived prometheus.Counter
	failed   prometheus.Counter

	retimeSkipped prometheus.Counter

	// 效能指標
	syncDuration prometheus.Histogram

	// 狀態指標
	cursor   prometheus.Gauge
	lastSync prometheus.Gauge
}

// NewCollector 創建新的指標收集器並註冊到 prometheus.DefaultRegisterer
// nil *Collector 的所有 Record 方法皆為 no-op
func NewCollector() *Collector {
	c := &Collector{
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_submissions_fetched_total",
			Help: "Total number of submissions returned by the listing API",
		}),
		filtered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_submissions_filtered_total",
			Help: "Total number of submissions rejected by the filter",
		}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_submissions_archived_total",
			Help: "Total number of submissions committed to the history",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_submissions_failed_total",
			Help: "Total number of submissions that failed to archive",
		}),
		retimeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_retime_skipped_total",
			Help: "Total number of entries left at their provisional time after a retime failure",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "archive_sync_duration_seconds",
			Help:    "Duration of one sync run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archive_cursor_epoch_seconds",
			Help: "Creation time of the newest archived submission",
		}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archive_last_sync_timestamp_seconds",
			Help: "Unix time the last sync run finished",
		}),
	}

	// 註冊所有指標
	prometheus.MustRegister(c.fetched)
	prometheus.MustRegister(c.filtered)
	prometheus.MustRegister(c.archived)
	prometheus.MustRegister(c.failed)
	prometheus.MustRegister(c.retimeSkipped)
	prometheus.MustRegister(c.syncDuration)
	prometheus.MustRegister(c.cursor)
	prometheus.MustRegister(c.lastSync)

	return c
}

// RecordFetched 記錄 API 回傳與過濾結果
func (c *Collector) RecordFetched(fetched, accepted int) {
	if c == nil {
		return
	}
	c.fetched.Add(float64(fetched))
	c.filtered.Add(float64(fetched - accepted))
}

// RecordArchived 記錄提交已寫入歷史，並推進游標
func (c *Collector) RecordArchived(epochSecond int64) {
	if c == nil {
		return
	}
	c.archived.Inc()
	c.cursor.Set(float64(epochSecond))
}

// RecordFailed 記錄提交寫入失敗
func (c *Collector) RecordFailed() {
	if c == nil {
		return
	}
	c.failed.Inc()
}

// RecordRetimeSkipped 記錄時間改寫失敗但 commit 已保留
func (c *Collector) RecordRetimeSkipped() {
	if c == nil {
		return
	}
	c.retimeSkipped.Inc()
}

// SetCursor 設置恢復後的游標
func (c *Collector) SetCursor(epochSecond int64) {
	if c == nil {
		return
	}
	c.cursor.Set(float64(epochSecond))
}

// RecordSync 記錄一次同步的耗時與完成時間
func (c *Collector) RecordSync(d time.Duration, finished time.Time) {
	if c == nil {
		return
	}
	c.syncDuration.Observe(d.Seconds())
	c.lastSync.Set(float64(finished.Unix()))
}

// WriteTextfile 將目前所有指標寫成 node_exporter textfile 格式
func WriteTextfile(path string) error {
	gatherer, ok := prometheus.DefaultRegisterer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler 回傳 /metrics 的 HTTP handler
func Handler() http.Handler {
	gatherer, ok := prometheus.DefaultRegisterer.(prometheus.Gatherer)
	if !ok {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StartServer 啟動 Prometheus metrics HTTP 伺服器
//
// 參數：
//   - port: HTTP 伺服器端口
//
// 返回值：
//   - *http.Server: 已啟動的伺服器，呼叫端負責 Shutdown
func StartServer(port int, onError func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && onError != nil {
			onError(err)
		}
	}()
	return srv
}
