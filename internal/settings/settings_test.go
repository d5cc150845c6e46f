package settings

// ============================================================================
// Settings Manager 測試檔案
// 職責：驗證設定檔的原子性寫入、載入、環境變數覆寫與前置條件檢查
// ============================================================================

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
	"github.com/ChuLiYu/atcoder-archive/pkg/types"
)

func TestNewManager(t *testing.T) {
	manager := NewManager("settings.yaml")
	assert.NotNil(t, manager)
	assert.Equal(t, "settings.yaml", manager.GetPath())
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	manager := NewManager(path)

	original := Settings{
		Username: "tourist",
		Filter: types.Filter{
			Results:   []string{"AC"},
			Languages: []string{"C++ 20 (gcc 12.2)"},
		},
		Author:      history.Signature{Name: "tourist", Email: "tourist@example.com"},
		Pace:        2 * time.Second,
		HTTPTimeout: 10 * time.Second,
		StopOnError: true,
	}

	require.NoError(t, manager.Write(original))
	assert.True(t, manager.Exists())

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	// .tmp 檔案不應殘留
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not exist after write")
}

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("username: tourist\n"), 0o644))

	loaded, err := NewManager(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "tourist", loaded.Username)
	assert.Empty(t, loaded.Filter.Results)
	assert.Empty(t, loaded.Filter.Languages)
	assert.Equal(t, DefaultPace, loaded.Pace)
	assert.Equal(t, DefaultHTTPTimeout, loaded.HTTPTimeout)
	assert.False(t, loaded.StopOnError)
}

func TestLoad_YAMLLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `
username: tourist
filter:
  results: [AC, WA]
  languages:
    - "Python (CPython 3.11.4)"
pace: 3s
http_timeout: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := NewManager(path).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"AC", "WA"}, loaded.Filter.Results)
	assert.Equal(t, []string{"Python (CPython 3.11.4)"}, loaded.Filter.Languages)
	assert.Equal(t, 3*time.Second, loaded.Pace)
	assert.Equal(t, time.Minute, loaded.HTTPTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("username: tourist\nfilter:\n  results: [WA]\n"), 0o644))

	t.Setenv("ATCODER_ARCHIVE_USERNAME", "petr")
	t.Setenv("ATCODER_ARCHIVE_RESULTS", "AC,TLE")

	loaded, err := NewManager(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "petr", loaded.Username)
	assert.Equal(t, []string{"AC", "TLE"}, loaded.Filter.Results)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("username: [unterminated\n"), 0o644))

	_, err := NewManager(path).Load()
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestLoad_EmptyUsername(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("username: \"  \"\n"), 0o644))

	_, err := NewManager(path).Load()
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		settings Settings
		wantErr  error
	}{
		{"valid", Settings{Username: "tourist"}, nil},
		{"empty username", Settings{}, ErrEmptyUsername},
		{"negative pace", Settings{Username: "tourist", Pace: -time.Second}, ErrInvalidSetting},
		{"negative timeout", Settings{Username: "tourist", HTTPTimeout: -time.Second}, ErrInvalidSetting},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.settings.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
