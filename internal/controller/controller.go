// ============================================================================
// atcoder-archive 控制器 - 同步流程協調器
// ============================================================================
//
// Package: internal/controller
// 文件: controller.go
// 功能: 協調游標恢復、提交列表、過濾與逐筆歸檔
//
// 架構設計:
//   - History: git 歷史，同時是資料與 checkpoint
//   - Source: 提交列表來源（kenkoooo API）
//   - Archiver: 逐筆寫入歷史（archive.Writer）
//   - Limiter: 逐筆之間的節流，尊重 AtCoder 的流量限制
//
// 同步流程 (Sync):
//   1. RecoverCursor() - 從歷史推導最新已歸檔提交的時間
//   2. FetchSubmissions(cursor + 1) - 只取游標之後的提交
//   3. Filter - 依設定的結果與語言過濾
//   4. 依提交時間由舊到新逐筆 Archive，每筆之間至少間隔 Pace
//
// 崩潰恢復:
//   每筆成功的 Archive 都會推進下一次 RecoverCursor 看到的游標；
//   中斷（context 取消）時停在最後完成的那一筆，下次從下一筆繼續。
//
// 失敗策略:
//   - 預設：單筆失敗記錄後繼續下一筆
//   - StopOnError：單筆失敗即停止，避免後續提交把游標推過失敗的那一筆
//
// 監看模式 (Start/Stop):
//   背景循環每隔 Interval 執行一次 Sync，直到 Stop
//
// ============================================================================

package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ChuLiYu/atcoder-archive/internal/archive"
	"github.com/ChuLiYu/atcoder-archive/internal/metrics"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Source lists a user's submissions created at or after fromSecond.
type Source interface {
	FetchSubmissions(ctx context.Context, user string, fromSecond int64) ([]types.Submission, error)
}

// Archiver appends one submission to the history.
type Archiver interface {
	Archive(ctx context.Context, s types.Submission) error
}

// Config Controller 配置
type Config struct {
	Username    string        // AtCoder 使用者名稱
	Filter      types.Filter  // 過濾條件
	Pace        time.Duration // 兩筆歸檔之間的最小間隔（0 表示不節流）
	StopOnError bool          // 單筆失敗時停止本次同步
	Interval    time.Duration // 監看模式的同步間隔
}

// Controller 核心控制器
type Controller struct {
	mu       sync.Mutex // 同一時間只允許一次 Sync
	config   Config
	source   Source
	archiver Archiver
	history  archive.HistoryReader
	limiter  *rate.Limiter
	metrics  *metrics.Collector
	logger   *slog.Logger

	loopMu  sync.Mutex         // 保護 cancel
	cancel  context.CancelFunc // 停止監看循環
	loopWg  sync.WaitGroup     // 等待循環退出
	lastErr error              // 監看模式最近一次錯誤
}

// Option configures a Controller.
type Option func(*Controller)

// WithMetrics records sync progress on the collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(ctrl *Controller) { ctrl.metrics = c }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// ============================================================================
// 核心方法實作
// ============================================================================

// NewController 建立新的 Controller 實例
//
// 參數：
//   - config: Controller 配置
//   - source: 提交列表來源
//   - archiver: 逐筆歸檔
//   - history: 用於恢復游標的歷史
func NewController(config Config, source Source, archiver Archiver, history archive.HistoryReader, opts ...Option) (*Controller, error) {
	if config.Username == "" {
		return nil, ErrEmptyUsername
	}

	limit := rate.Inf
	if config.Pace > 0 {
		limit = rate.Every(config.Pace)
	}

	c := &Controller{
		config:   config,
		source:   source,
		archiver: archiver,
		history:  history,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sync 執行一次增量同步
//
// 返回值：
//   - int: 本次成功歸檔的提交數
//   - error: 游標恢復或列表失敗、context 取消、或 StopOnError 觸發
func (c *Controller) Sync(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer func() {
		c.metrics.RecordSync(time.Since(start), time.Now())
	}()

	// 1. 恢復游標
	cursor, ok, err := archive.RecoverCursor(ctx, c.history)
	if err != nil {
		return 0, err
	}
	var since int64
	if ok {
		since = cursor + 1
		c.metrics.SetCursor(cursor)
	}

	c.logger.Info("Starting sync",
		"user", c.config.Username,
		"cursor_found", ok,
		"since", since)

	// 2. 取得候選提交
	candidates, err := c.source.FetchSubmissions(ctx, c.config.Username, since)
	if err != nil {
		return 0, fmt.Errorf("fetch submissions: %w", err)
	}

	// 3. 過濾（已歸檔的時間範圍一律排除，不依賴來源是否遵守 since）
	accepted := make([]types.Submission, 0, len(candidates))
	for _, s := range c.config.Filter.Apply(candidates) {
		if s.EpochSecond >= since {
			accepted = append(accepted, s)
		}
	}
	c.metrics.RecordFetched(len(candidates), len(accepted))

	if len(accepted) == 0 {
		c.logger.Info("No new submissions", "fetched", len(candidates))
		return 0, nil
	}

	// 4. 由舊到新逐筆歸檔
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].EpochSecond != accepted[j].EpochSecond {
			return accepted[i].EpochSecond < accepted[j].EpochSecond
		}
		return accepted[i].ID < accepted[j].ID
	})

	archived := 0
	for i, s := range accepted {
		if err := c.limiter.Wait(ctx); err != nil {
			return archived, err
		}

		if err := c.archiver.Archive(ctx, s); err != nil {
			// 中斷：停在最後完成的那一筆
			if ctxErr := ctx.Err(); ctxErr != nil {
				return archived, ctxErr
			}

			c.metrics.RecordFailed()
			c.logger.Error("Failed to archive submission",
				"contest", s.ContestID,
				"submission", s.ID,
				"epoch", s.EpochSecond,
				"error", err)

			if c.config.StopOnError {
				return archived, fmt.Errorf("%w: %s/%d: %w", ErrStoppedOnError, s.ContestID, s.ID, err)
			}
			continue
		}

		archived++
		c.metrics.RecordArchived(s.EpochSecond)
		c.logger.Info("Archived submission",
			"progress", fmt.Sprintf("%d/%d", i+1, len(accepted)),
			"contest", s.ContestID,
			"problem", s.ProblemID,
			"submission", s.ID,
			"result", s.Result)
	}

	c.logger.Info("Sync completed",
		"archived", archived,
		"failed", len(accepted)-archived,
		"duration", time.Since(start))
	return archived, nil
}

// ============================================================================
// 監看模式
// ============================================================================

// Start 啟動背景同步循環：立即執行一次，之後每隔 Interval 執行
func (c *Controller) Start(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyStarted
	}

	interval := c.config.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.loopWg.Add(1)
	go c.syncLoop(loopCtx, interval)

	c.logger.Info("Controller started", "interval", interval)
	return nil
}

// syncLoop 週期性執行 Sync
func (c *Controller) syncLoop(ctx context.Context, interval time.Duration) {
	defer c.loopWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Sync loop stopped")
				return
			}
			c.setLastErr(err)
			c.logger.Error("Sync failed", "error", err)
		} else {
			c.setLastErr(nil)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Sync loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop 停止背景循環並等待目前的同步結束
func (c *Controller) Stop() {
	c.loopMu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.loopWg.Wait()
	c.logger.Info("Controller stopped")
}

// LastError 回傳監看模式最近一次同步的錯誤
func (c *Controller) LastError() error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.lastErr
}

func (c *Controller) setLastErr(err error) {
	c.loopMu.Lock()
	c.lastErr = err
	c.loopMu.Unlock()
}
