package archive

// ============================================================================
// Archive Writer
// 職責：
// 1. 取得提交的程式碼
// 2. 寫入固定路徑並以一個 commit 追加到歷史（metadata 放在訊息中）
// 3. 將 commit 時間改寫為提交的原始時間，使歷史依提交時間排序
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ChuLiYu/atcoder-archive/internal/metrics"
	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

// CodeFetcher retrieves the source code of one submission.
type CodeFetcher interface {
	FetchCode(ctx context.Context, contestID string, submissionID int64) (string, error)
}

// Store is the part of the history store the writer appends to.
type Store interface {
	WriteFile(name string, data []byte) error
	Commit(paths []string, message string, when time.Time) (plumbing.Hash, error)
	Retime(hash plumbing.Hash, when time.Time) (plumbing.Hash, error)
}

// Writer 將提交寫入歷史
type Writer struct {
	store   Store
	fetcher CodeFetcher
	now     func() time.Time
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the provisional commit time source.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithMetrics records retime failures on the collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(w *Writer) { w.metrics = c }
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter 建立 Writer
func NewWriter(store Store, fetcher CodeFetcher, opts ...Option) *Writer {
	w := &Writer{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Archive 將單一提交寫入歷史
//
// 流程：
//  1. 取得程式碼（找不到時回傳 atcoder.ErrCodeNotFound）
//  2. 寫入 {language}/{contest_id}/{problem_id}{ext}（覆寫）
//  3. stage 並 commit，暫用目前時間
//  4. 改寫 commit 時間為提交時間
//
// 步驟 4 失敗不會讓 Archive 失敗：commit 已存在且 metadata 可被解碼，
// 只是時間停留在建立當下。
func (w *Writer) Archive(ctx context.Context, s types.Submission) error {
	// 1. 取得程式碼
	code, err := w.fetcher.FetchCode(ctx, s.ContestID, s.ID)
	if err != nil {
		return fmt.Errorf("fetch code %s/%d: %w", s.ContestID, s.ID, err)
	}

	message, err := EncodeMessage(s)
	if err != nil {
		return err
	}

	// 2. 寫入檔案
	p := Path(s)
	if err := w.store.WriteFile(p, []byte(code)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	// 3. 追加 commit
	hash, err := w.store.Commit([]string{p}, message, w.now())
	if err != nil {
		return fmt.Errorf("commit %s: %w", p, err)
	}

	// 4. 改寫時間
	w.retime(hash, s)

	w.logger.Debug("Submission archived",
		"contest", s.ContestID,
		"submission", s.ID,
		"path", p)
	return nil
}

// retime 將 commit 時間改為提交時間，區分「不需改寫」與「非預期失敗」
func (w *Writer) retime(hash plumbing.Hash, s types.Submission) {
	_, err := w.store.Retime(hash, s.CreatedAt())
	switch {
	case err == nil:
	case errors.Is(err, history.ErrNothingToRetime):
		w.logger.Debug("Retime not needed", "submission", s.ID, "reason", err)
	default:
		w.metrics.RecordRetimeSkipped()
		w.logger.Warn("Failed to retime entry, keeping provisional time",
			"submission", s.ID,
			"commit", hash.String(),
			"error", err)
	}
}
