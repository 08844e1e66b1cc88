package badger

import "errors"

var (
	// ErrBackendRequired is returned when a store is created without a backend.
	ErrBackendRequired = errors.New("backend required")

	// errStopIteration ends a scan early when the consumer stops ranging.
	errStopIteration = errors.New("stop iteration")
)
