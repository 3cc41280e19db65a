package scoring

import "errors"

// Sentinel kinds for score conversion and validation errors.
var (
	ErrInvalidScore    = errors.New("invalid score")
	ErrDeltaOutOfRange = errors.New("score delta out of range")
)
