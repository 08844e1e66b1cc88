package storage

import (
	"context"
	"errors"

	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/retry"
)

// ErrStoreRequired is returned when a decorator is built without a store.
var ErrStoreRequired = errors.New("vector store is required")

// RetryingStore retries transient failures of the write path of a
// VectorStore with exponential backoff. Reads pass straight through.
type RetryingStore struct {
	VectorStore
	policy retry.Policy
}

var _ VectorStore = (*RetryingStore)(nil)

// NewRetryingStore wraps store so that EnsureCollection and Upsert are
// retried under policy.
func NewRetryingStore(store VectorStore, policy retry.Policy) (*RetryingStore, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if policy.MaxAttempts <= 0 {
		return nil, retry.ErrInvalidMaxAttempts
	}
	return &RetryingStore{VectorStore: store, policy: policy}, nil
}

// Policy returns the retry policy in effect.
func (s *RetryingStore) Policy() retry.Policy {
	return s.policy
}

// EnsureCollection creates the collection, retrying transient failures.
func (s *RetryingStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	return retry.Do(ctx, s.policy, func() error {
		return permanentUnlessTransient(s.VectorStore.EnsureCollection(ctx, name, dimension))
	})
}

// Upsert writes points, retrying transient failures.
func (s *RetryingStore) Upsert(ctx context.Context, name string, points ...*core.Point) (int, error) {
	var stored int
	err := retry.Do(ctx, s.policy, func() error {
		n, err := s.VectorStore.Upsert(ctx, name, points...)
		if err != nil {
			return permanentUnlessTransient(err)
		}
		stored = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// permanentUnlessTransient stops retries for errors that a second attempt
// cannot fix.
func permanentUnlessTransient(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range []error{
		ErrDimensionMismatch,
		ErrCollectionNotFound,
		ErrInvalidQuery,
		ErrStorageClosed,
		core.ErrInvalidPoint,
		core.ErrEmptyCollection,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return retry.Permanent(err)
		}
	}
	return err
}
