package chunk

import "errors"

var (
	// ErrInvalidSize indicates a non-positive chunk size.
	ErrInvalidSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates an overlap outside [0, size).
	ErrInvalidOverlap = errors.New("overlap must be non-negative and less than chunk size")
)
