// Package types 定義了 atcoder-archive 系統中使用的核心領域模型
package types

import (
	"slices"
	"time"
)

// Submission 一筆 AtCoder 提交紀錄（由 kenkoooo API 取得）
//
// JSON 欄位名稱與 API 回應一致，同時也是歷史紀錄中 commit 訊息的 metadata 格式，
// 因此十個欄位都必須能無損來回序列化。
type Submission struct {
	ID          int64   `json:"id"`           // 提交 ID（在同一場比賽內唯一）
	EpochSecond int64   `json:"epoch_second"` // 提交時間（Unix 秒）
	ProblemID   string  `json:"problem_id"`   // 題目 ID，例如 abc300_a
	ContestID   string  `json:"contest_id"`   // 比賽 ID，例如 abc300
	UserID      string  `json:"user_id"`      // 使用者名稱
	Language    string  `json:"language"`     // 語言標籤，例如 "C++ 20 (gcc 12.2)"
	Point       float64 `json:"point"`        // 得分
	Length      int64   `json:"length"`       // 程式碼長度（bytes）
	Result      string  `json:"result"`       // 判定結果：AC, WA, TLE, CE ...

	// ExecutionTime 執行時間（毫秒）；CE 等未執行的提交為 null
	ExecutionTime *int64 `json:"execution_time"`
}

// CreatedAt 回傳提交時間
func (s Submission) CreatedAt() time.Time {
	return time.Unix(s.EpochSecond, 0).UTC()
}

// Filter 使用者設定的過濾條件，空清單代表全部接受
type Filter struct {
	Results   []string `yaml:"results" env:"ATCODER_ARCHIVE_RESULTS" envSeparator:","`
	Languages []string `yaml:"languages" env:"ATCODER_ARCHIVE_LANGUAGES" envSeparator:","`
}

// Accepts 判斷提交是否符合過濾條件
func (f Filter) Accepts(s Submission) bool {
	if len(f.Results) > 0 && !slices.Contains(f.Results, s.Result) {
		return false
	}
	if len(f.Languages) > 0 && !slices.Contains(f.Languages, s.Language) {
		return false
	}
	return true
}

// Apply 回傳符合條件的提交，保留原本順序
func (f Filter) Apply(subs []Submission) []Submission {
	accepted := make([]Submission, 0, len(subs))
	for _, s := range subs {
		if f.Accepts(s) {
			accepted = append(accepted, s)
		}
	}
	return accepted
}
