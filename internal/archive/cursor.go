package archive

// ============================================================================
// 游標恢復
// 職責：只靠歷史本身推導「已歸檔到哪裡」，不另存 checkpoint
//
// 由新到舊走訪 commit，第一筆能解碼出 metadata 的 commit 即為游標；
// 無法解碼的 commit（初始 commit、手動 commit、損壞的 metadata）直接跳過。
// ============================================================================

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

// HistoryReader walks the history newest-first.
type HistoryReader interface {
	Walk(ctx context.Context, handler history.EntryHandler) error
}

// RecoverCursor 回傳最新已歸檔提交的時間
//
// 回傳：
//
//	(epoch, true, nil)：找到游標
//	(0, false, nil)：歷史為空或沒有任何可解碼的 commit，從頭開始
//	error：走訪歷史本身失敗
func RecoverCursor(ctx context.Context, h HistoryReader) (int64, bool, error) {
	var (
		cursor  int64
		found   bool
		skipped int
	)

	err := h.Walk(ctx, func(e history.Entry) error {
		s, err := DecodeMessage(e.Message)
		if err != nil {
			skipped++
			slog.Debug("Skipping entry without metadata", "commit", e.Hash.String(), "error", err)
			return nil
		}
		cursor, found = s.EpochSecond, true
		return history.ErrStopWalk
	})
	if err != nil {
		return 0, false, fmt.Errorf("recover cursor: %w", err)
	}

	slog.Debug("Cursor recovered", "found", found, "epoch", cursor, "skipped", skipped)
	return cursor, found, nil
}

// Summary 歷史內容統計（status 指令使用）
type Summary struct {
	Archived int               // 可解碼的 commit 數
	Foreign  int               // 無 metadata 的 commit 數
	Newest   *types.Submission // 最新已歸檔提交
}

// Summarize 完整走訪歷史並統計
func Summarize(ctx context.Context, h HistoryReader) (Summary, error) {
	var sum Summary
	err := h.Walk(ctx, func(e history.Entry) error {
		s, err := DecodeMessage(e.Message)
		if err != nil {
			sum.Foreign++
			return nil
		}
		if sum.Newest == nil {
			sum.Newest = &s
		}
		sum.Archived++
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("summarize history: %w", err)
	}
	return sum, nil
}
