package controller

import "errors"

var (
	// ErrEmptyUsername indicates a controller configured without a user
	ErrEmptyUsername = errors.New("controller: username is required")

	// ErrStoppedOnError indicates a sync stopped at a failed submission
	// because StopOnError is set
	ErrStoppedOnError = errors.New("controller: sync stopped at failed submission")

	// ErrAlreadyStarted indicates Start was called twice
	ErrAlreadyStarted = errors.New("controller: already started")
)
