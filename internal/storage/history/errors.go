package history

// ============================================================================
// History Error Definitions
// Purpose: Define all history-store-related error types
// ============================================================================

import "errors"

// Predefined errors
var (
	// ErrNotRepository indicates the archive directory is not a git repository
	ErrNotRepository = errors.New("history: not a git repository")

	// ErrNothingToRetime indicates a retime request had nothing to rewrite:
	// the commit is no longer HEAD, or it already carries the requested time.
	// Callers treat this as a terminal no-op, not a failure.
	ErrNothingToRetime = errors.New("history: nothing to retime")

	// ErrStopWalk stops Walk early without reporting an error
	ErrStopWalk = errors.New("history: stop walk")

	// ErrInvalidPath indicates a path that escapes the worktree or is empty
	ErrInvalidPath = errors.New("history: invalid path")
)
