package history

// ============================================================================
// History 核心實作（git 儲存庫即 append-only log）
// 職責：
// 1. 寫入檔案並以單一 commit 追加到歷史（append-only）
// 2. 由新到舊走訪 commit，供恢復游標使用
// 3. 改寫剛建立的 commit 時間（不改內容、不改位置）
// 4. 支援磁碟（PlainOpen）與記憶體（測試用）兩種儲存
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Store 表示一個以 git 儲存庫為後端的歷史紀錄
type Store struct {
	mu     sync.Mutex       // 保護 worktree 與 refs 操作
	repo   *git.Repository  // git 儲存庫
	fs     billy.Filesystem // worktree 檔案系統
	author Signature        // commit 作者
}

// ============================================================================
// 公開介面
// ============================================================================

/*
Open 開啟既有的 git 儲存庫

回傳：

	*Store 實例；目錄不是 git 儲存庫時回傳 ErrNotRepository
*/
func Open(dir string) (*Store, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}
		return nil, fmt.Errorf("history: open %s: %w", dir, err)
	}
	return newStore(repo)
}

// Init 建立新的 git 儲存庫；已存在時直接開啟
func Init(dir string) (*Store, error) {
	repo, err := git.PlainInit(dir, false)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return Open(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("history: init %s: %w", dir, err)
	}
	return newStore(repo)
}

// NewMemory 建立記憶體中的儲存庫（測試與試跑用）
func NewMemory() (*Store, error) {
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		return nil, fmt.Errorf("history: init memory repository: %w", err)
	}
	return newStore(repo)
}

func newStore(repo *git.Repository) (*Store, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("history: worktree: %w", err)
	}
	return &Store{
		repo:   repo,
		fs:     wt.Filesystem,
		author: DefaultSignature,
	}, nil
}

// SetAuthor 設定之後 commit 使用的作者；空欄位沿用預設值
func (s *Store) SetAuthor(sig Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sig.Name == "" {
		sig.Name = DefaultSignature.Name
	}
	if sig.Email == "" {
		sig.Email = DefaultSignature.Email
	}
	s.author = sig
}

// WriteFile 將內容寫入 worktree 中的路徑（覆寫既有檔案）
//
// 參數：
//
//	name - 以 "/" 分隔、相對於 worktree 根目錄的路徑
//	data - 檔案內容
func (s *Store) WriteFile(name string, data []byte) error {
	name, err := cleanPath(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("history: write %s: %w", name, err)
	}
	return nil
}

// ReadFile 讀取 worktree 中的檔案
func (s *Store) ReadFile(name string) ([]byte, error) {
	name, err := cleanPath(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Commit 將路徑加入 index 並建立一個 commit
//
// 行為：
// - 作者與提交者時間皆為 when
// - 允許空 commit：內容未變時仍記錄一筆 metadata
//
// 回傳：
//
//	新 commit 的 hash，錯誤（如果有）
func (s *Store) Commit(paths []string, message string, when time.Time) (plumbing.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: worktree: %w", err)
	}

	for _, p := range paths {
		p, err := cleanPath(p)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if _, err := wt.Add(p); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("history: stage %s: %w", p, err)
		}
	}

	sig := &object.Signature{Name: s.author.Name, Email: s.author.Email, When: when}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: commit: %w", err)
	}
	return hash, nil
}

// Retime 改寫 commit 的作者與提交者時間
//
// 行為：
// - 只允許改寫目前 HEAD 指向的 commit（剛建立的那一筆）
// - 新 commit 的 tree、parents、message 與原本完全相同
// - 分支指向新 commit，其他 commit 不受影響
//
// 回傳：
//
//	新 commit 的 hash；不需改寫時回傳 ErrNothingToRetime
func (s *Store) Retime(hash plumbing.Hash, when time.Time) (plumbing.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, fmt.Errorf("%w: empty history", ErrNothingToRetime)
		}
		return plumbing.ZeroHash, fmt.Errorf("history: resolve HEAD: %w", err)
	}
	if head.Hash() != hash {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s is not HEAD", ErrNothingToRetime, hash)
	}

	c, err := s.repo.CommitObject(hash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: load commit %s: %w", hash, err)
	}
	if c.Author.When.Equal(when) && c.Committer.When.Equal(when) {
		return plumbing.ZeroHash, fmt.Errorf("%w: %s already at %s", ErrNothingToRetime, hash, when)
	}

	// 1. 複製原 commit，只替換時間
	rewritten := &object.Commit{
		Author:       withWhen(c.Author, when),
		Committer:    withWhen(c.Committer, when),
		Message:      c.Message,
		TreeHash:     c.TreeHash,
		ParentHashes: c.ParentHashes,
		Encoding:     c.Encoding,
	}

	// 2. 寫入物件庫
	obj := s.repo.Storer.NewEncodedObject()
	if err := rewritten.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: encode commit: %w", err)
	}
	newHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: store commit: %w", err)
	}

	// 3. 移動分支（關鍵步驟）
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(head.Name(), newHash)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("history: update %s: %w", head.Name(), err)
	}

	return newHash, nil
}

// Walk 由新到舊走訪 HEAD 的 commit 鏈
//
// 行為：
// - 空儲存庫（沒有 HEAD）不呼叫 handler，直接回傳 nil
// - handler 回傳 ErrStopWalk 時提前結束
// - handler 回傳其他錯誤時立即停止並回傳該錯誤
func (s *Store) Walk(ctx context.Context, handler EntryHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}
		return fmt.Errorf("history: resolve HEAD: %w", err)
	}

	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("history: log: %w", err)
	}
	defer iter.Close()

	return iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := handler(Entry{Hash: c.Hash, Message: c.Message, When: c.Committer.When})
		if errors.Is(err, ErrStopWalk) {
			return storer.ErrStop
		}
		return err
	})
}

// Head 回傳 HEAD 指向的 commit；空儲存庫回傳 false
func (s *Store) Head() (plumbing.Hash, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("history: resolve HEAD: %w", err)
	}
	return head.Hash(), true, nil
}

// ============================================================================
// 內部輔助方法（私有）
// ============================================================================

func withWhen(sig object.Signature, when time.Time) object.Signature {
	sig.When = when
	return sig
}

// cleanPath 正規化路徑並拒絕跳出 worktree 的路徑
func cleanPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	cleaned := path.Clean(strings.TrimPrefix(name, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.HasPrefix(cleaned, ".git/") || cleaned == ".git" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return cleaned, nil
}
