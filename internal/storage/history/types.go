package history

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// ============================================================================
// History Type Definitions
// Responsibility: Define core data structures for the history store
// ============================================================================

// Entry is one commit as seen by readers of the history
type Entry struct {
	Hash    plumbing.Hash // Commit hash
	Message string        // Full commit message (title + body)
	When    time.Time     // Committer time
}

// Signature identifies who records entries
type Signature struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DefaultSignature is used when the settings carry no author
var DefaultSignature = Signature{
	Name:  "atcoder-archive",
	Email: "atcoder-archive@localhost",
}

// EntryHandler is the function type for visiting history entries.
// Returning ErrStopWalk ends the walk early.
type EntryHandler func(entry Entry) error
