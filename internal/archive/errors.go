package archive

// ============================================================================
// Archive Error Definitions
// ============================================================================

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMetadata indicates a commit message carries no decodable submission
	ErrNoMetadata = errors.New("archive: no submission metadata")

	// ErrChecksumMismatch indicates the metadata body does not match its trailer
	ErrChecksumMismatch = errors.New("archive: metadata checksum mismatch")
)

// ChecksumError represents checksum error with detailed information
type ChecksumError struct {
	Expected uint32 // Checksum recorded in the trailer
	Actual   uint32 // Checksum of the body as found
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("archive: metadata checksum mismatch (expected=0x%08x, got=0x%08x)", e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}
