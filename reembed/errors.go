package reembed

import "errors"

var (
	// ErrCollectionRequired is returned when no collection name is given.
	ErrCollectionRequired = errors.New("collection name required")

	// ErrCountMismatch is returned when the embedder returns the wrong number of vectors.
	ErrCountMismatch = errors.New("embedding count mismatch")
)
