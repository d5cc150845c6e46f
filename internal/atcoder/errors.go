package atcoder

import (
	"errors"
	"fmt"
)

var (
	// ErrCodeNotFound indicates the submission page has no pre#submission-code
	ErrCodeNotFound = errors.New("atcoder: submission code not found")

	// ErrEmptyUser indicates a listing request without a user
	ErrEmptyUser = errors.New("atcoder: user is empty")
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("atcoder: GET %s: unexpected status %d", e.URL, e.StatusCode)
}
