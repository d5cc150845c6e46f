package archive

// ============================================================================
// Commit 訊息編碼
// 職責：把 Submission 編碼成 commit 訊息，並能從訊息還原
//
// 格式：
//
//	<problem_id> <result> (<language>)
//
//	{"id":...,"epoch_second":...}
//
//	Archive-Checksum: 1a2b3c4d
//
// 校驗和使用 CRC32-IEEE，只涵蓋 JSON 那一行；trailer 可省略（手動寫入的
// commit），但存在時必須吻合。
// ============================================================================

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

const checksumTrailer = "Archive-Checksum:"

// Title 回傳 commit 標題
func Title(s types.Submission) string {
	return fmt.Sprintf("%s %s (%s)", s.ProblemID, s.Result, s.Language)
}

// EncodeMessage 將提交編碼為 commit 訊息
func EncodeMessage(s types.Submission) (string, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("archive: marshal submission %d: %w", s.ID, err)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s %08x\n", Title(s), body, checksumTrailer, crc32.ChecksumIEEE(body)), nil
}

// DecodeMessage 從 commit 訊息還原提交
//
// 回傳：
//
//	ErrNoMetadata：沒有 JSON 內文、JSON 損壞或缺少識別欄位
//	*ChecksumError：trailer 與內文不符
func DecodeMessage(message string) (types.Submission, error) {
	var s types.Submission

	lines := strings.Split(message, "\n")
	if len(lines) < 2 {
		return s, ErrNoMetadata
	}

	var body, sum string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		switch {
		case body == "" && strings.HasPrefix(line, "{"):
			body = line
		case strings.HasPrefix(line, checksumTrailer):
			sum = strings.TrimSpace(strings.TrimPrefix(line, checksumTrailer))
		}
	}
	if body == "" {
		return s, ErrNoMetadata
	}

	if sum != "" {
		expected, err := strconv.ParseUint(sum, 16, 32)
		if err != nil {
			return s, fmt.Errorf("%w: bad checksum trailer %q", ErrNoMetadata, sum)
		}
		if actual := crc32.ChecksumIEEE([]byte(body)); uint32(expected) != actual {
			return s, &ChecksumError{Expected: uint32(expected), Actual: actual}
		}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return types.Submission{}, fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}
	if s.ID == 0 || s.ContestID == "" || s.EpochSecond <= 0 {
		return types.Submission{}, fmt.Errorf("%w: missing identity fields", ErrNoMetadata)
	}

	return s, nil
}
