package settings

// ============================================================================
// 職責說明：
// 1. 讀取與寫入歸檔目錄中的設定檔（YAML）
// 2. 使用原子性寫入（temp file + rename）防止損壞
// 3. 允許以環境變數覆寫使用者名稱與過濾條件
// 4. 驗證執行同步前必須具備的條件（設定檔存在、使用者名稱非空）
// ============================================================================

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	ErrNotFound       = errors.New("settings file not found (run 'atcoder-archive init' first)")
	ErrCorrupted      = errors.New("settings file is corrupted")
	ErrEmptyUsername  = errors.New("settings: username is empty")
	ErrInvalidSetting = errors.New("settings: invalid value")
)

// DefaultFileName 設定檔預設檔名（位於歸檔目錄根部）
const DefaultFileName = "settings.yaml"

// ============================================================================
// 資料結構定義
// ============================================================================

// Settings 歸檔設定
type Settings struct {
	Username string            `yaml:"username" env:"ATCODER_ARCHIVE_USERNAME"`
	Filter   types.Filter      `yaml:"filter"`
	Author   history.Signature `yaml:"author,omitempty"`

	// Pace 兩筆提交之間的最小間隔（尊重 AtCoder 的流量限制）
	Pace time.Duration `yaml:"pace,omitempty"`

	// HTTPTimeout 單一 HTTP 請求的逾時
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`

	// StopOnError 單筆失敗時停止本次同步，避免游標越過失敗的提交
	StopOnError bool `yaml:"stop_on_error,omitempty"`
}

// 預設值
const (
	DefaultPace        = 1500 * time.Millisecond
	DefaultHTTPTimeout = 30 * time.Second
)

// Validate 檢查同步前置條件
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Username) == "" {
		return ErrEmptyUsername
	}
	if s.Pace < 0 {
		return fmt.Errorf("%w: pace %s", ErrInvalidSetting, s.Pace)
	}
	if s.HTTPTimeout < 0 {
		return fmt.Errorf("%w: http_timeout %s", ErrInvalidSetting, s.HTTPTimeout)
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if s.Pace == 0 {
		s.Pace = DefaultPace
	}
	if s.HTTPTimeout == 0 {
		s.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Manager 設定檔管理器
type Manager struct {
	path string     // 設定檔路徑
	mu   sync.Mutex // 保護檔案操作
}

// ============================================================================
// 核心方法實作
// ============================================================================

// NewManager 建立設定檔管理器實例
func NewManager(path string) *Manager {
	return &Manager{
		path: path,
	}
}

// Write 原子性寫入設定檔
//
// 使用原子性寫入流程：
// 1. 寫入臨時檔案（.tmp）
// 2. 使用 os.Rename 原子性替換原始檔案
func (m *Manager) Write(s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmpPath := m.path + ".tmp"

	// 1. 寫入臨時檔案
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp settings: %w", err)
	}

	// 2. 原子性重新命名（關鍵步驟）
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename settings: %w", err)
	}

	return nil
}

// Load 載入設定檔並套用環境變數覆寫
//
// 行為：
//   - 檔案不存在時回傳 ErrNotFound（同步無法開始）
//   - YAML 損壞時回傳 ErrCorrupted
//   - 套用預設值與環境變數，最後驗證
func (m *Manager) Load() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Settings

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, fmt.Errorf("%w: %s", ErrNotFound, m.path)
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}

	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Exists 檢查設定檔是否存在
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath 取得設定檔路徑
func (m *Manager) GetPath() string {
	return m.path
}
