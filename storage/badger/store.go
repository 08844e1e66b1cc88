// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/storage"
)

// DefaultBatchSize is the number of points written per transaction.
const DefaultBatchSize = 100

// VectorStore implements storage.VectorStore on BadgerDB.
// Similarity search is a brute-force scan of the collection.
type VectorStore struct {
	backend   *Backend
	batchSize int
	logger    *slog.Logger

	// commit finalizes a batch transaction; replaced in tests.
	commit func(tx *badger.Txn) error
}

var _ storage.VectorStore = (*VectorStore)(nil)

// Option configures a VectorStore.
type Option func(*VectorStore) error

// WithBatchSize sets how many points are written per transaction.
// Default is 100.
func WithBatchSize(size int) Option {
	return func(s *VectorStore) error {
		if size < 1 {
			size = 1
		}
		s.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *VectorStore) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewVectorStore creates a vector store on top of backend.
// The store takes ownership of the backend and closes it on Close.
func NewVectorStore(backend *Backend, opts ...Option) (*VectorStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	s := &VectorStore{
		backend:   backend,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
		commit:    (*badger.Txn).Commit,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "vector_store")

	return s, nil
}

// OpenVectorStore opens a persistent vector store at path.
func OpenVectorStore(path string, opts ...Option) (*VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}

	store, err := NewVectorStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying backend.
func (s *VectorStore) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// checkOpen reports storage.ErrStorageClosed once Close has been called.
func (s *VectorStore) checkOpen() error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (s *VectorStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := core.ValidateCollection(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrInvalidQuery, dimension)
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readCollection(tx, name)
		if err == nil {
			if existing.Dimension != dimension {
				return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
					storage.ErrDimensionMismatch, name, existing.Dimension, dimension)
			}
			return nil
		}
		if !errors.Is(err, storage.ErrCollectionNotFound) {
			return err
		}

		value, err := storage.MarshalCollection(&core.Collection{
			Name:      name,
			Dimension: dimension,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := tx.Set(makeCollectionKey(name), value); err != nil {
			return err
		}
		s.logger.Info("created collection", "collection", name, "dimension", dimension)
		return tx.Commit()
	}, true)
}

// GetCollection returns collection metadata.
func (s *VectorStore) GetCollection(ctx context.Context, name string) (*core.Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var collection *core.Collection
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		collection, err = readCollection(tx, name)
		return err
	}, false)
	return collection, err
}

// ListCollections returns every collection ordered by name.
func (s *VectorStore) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var collections []*core.Collection
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				c, err := storage.UnmarshalCollection(val)
				if err != nil {
					return err
				}
				collections = append(collections, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return collections, err
}

// Upsert writes points in batches of the configured size, each batch in its
// own transaction.
func (s *VectorStore) Upsert(ctx context.Context, name string, points ...*core.Point) (int, error) {
	collection, err := s.GetCollection(ctx, name)
	if err != nil {
		return 0, err
	}

	valid := make([]*core.Point, 0, len(points))
	for i, p := range points {
		if p == nil || strings.TrimSpace(p.Text) == "" {
			continue
		}
		if len(p.Vector) != collection.Dimension {
			return 0, fmt.Errorf("%w: point %d has dimension %d, collection %q expects %d",
				storage.ErrDimensionMismatch, i, len(p.Vector), name, collection.Dimension)
		}
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return 0, fmt.Errorf("%w: no points with text", storage.ErrNothingStored)
	}

	now := time.Now().UTC()
	for _, p := range valid {
		p.Collection = name
		if p.ID == 0 {
			p.ID = core.PointID(name, p.Text)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}

	stored := 0
	var failures []error
	for start := 0; start < len(valid); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		end := min(start+s.batchSize, len(valid))
		batch := valid[start:end]
		if err := s.writeBatch(name, batch); err != nil {
			s.logger.Warn("error storing batch, skipping",
				"collection", name, "batch", start/s.batchSize, "size", len(batch), "err", err)
			failures = append(failures, err)
			continue
		}
		stored += len(batch)
	}

	if stored == 0 {
		return 0, errors.Join(append([]error{storage.ErrNothingStored}, failures...)...)
	}
	s.logger.Debug("stored points", "collection", name, "stored", stored, "failed_batches", len(failures))
	return stored, nil
}

func (s *VectorStore) writeBatch(name string, batch []*core.Point) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for _, p := range batch {
			if err := core.ValidatePoint(p); err != nil {
				return err
			}
			value, err := storage.MarshalPoint(p)
			if err != nil {
				return err
			}
			if err := tx.Set(makePointKey(name, p.ID), value); err != nil {
				return err
			}
		}
		return s.commit(tx)
	}, true)
}

// Search ranks every point in the collection by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, name string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", storage.ErrInvalidQuery, limit)
	}

	collection, err := s.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != collection.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, collection %q expects %d",
			storage.ErrDimensionMismatch, len(vector), name, collection.Dimension)
	}

	var results []*core.SearchResult
	for point, err := range s.Points(ctx, name) {
		if err != nil {
			return nil, err
		}
		results = append(results, &core.SearchResult{
			Point: point,
			Score: storage.CosineSimilarity(vector, point.Vector),
		})
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Points iterates over every point of the collection.
func (s *VectorStore) Points(ctx context.Context, name string) iter.Seq2[*core.Point, error] {
	return func(yield func(*core.Point, error) bool) {
		if err := s.checkOpen(); err != nil {
			yield(nil, err)
			return
		}
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			if _, err := readCollection(tx, name); err != nil {
				return err
			}

			opts := badger.DefaultIteratorOptions
			opts.Prefix = makePointPrefix(name)
			it := tx.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var point *core.Point
				err := it.Item().Value(func(val []byte) error {
					var err error
					point, err = storage.UnmarshalPoint(val)
					return err
				})
				if err != nil {
					return err
				}
				if !yield(point, nil) {
					return errStopIteration
				}
			}
			return nil
		}, false)

		if err != nil && !errors.Is(err, errStopIteration) {
			yield(nil, err)
		}
	}
}

// Count returns the number of points in the collection.
func (s *VectorStore) Count(ctx context.Context, name string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readCollection(tx, name); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointPrefix(name)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// DeleteCollection removes the collection metadata and all of its points.
func (s *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.GetCollection(ctx, name); err != nil {
		return err
	}
	if err := s.backend.DropPrefix(makePointPrefix(name)); err != nil {
		return err
	}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCollectionKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err == nil {
		s.logger.Info("deleted collection", "collection", name)
	}
	return err
}

// readCollection loads collection metadata inside tx.
func readCollection(tx *badger.Txn, name string) (*core.Collection, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, name)
		}
		return nil, err
	}

	var collection *core.Collection
	err = item.Value(func(val []byte) error {
		var err error
		collection, err = storage.UnmarshalCollection(val)
		return err
	})
	return collection, err
}
