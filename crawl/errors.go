package crawl

import "errors"

var (
	// ErrFetcherRequired is returned when a crawler is created without a fetcher.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrInvalidTimeout is returned for a non-positive timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)
