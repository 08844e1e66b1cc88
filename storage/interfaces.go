package storage

import (
	"context"
	"iter"

	"github.com/poiesic/sitebot/core"
)

// VectorStore stores embedded chunks and answers similarity queries.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// Returns ErrDimensionMismatch if it exists with a different dimension.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// GetCollection returns collection metadata.
	// Returns ErrCollectionNotFound if it doesn't exist.
	GetCollection(ctx context.Context, name string) (*core.Collection, error)

	// ListCollections returns every collection ordered by name.
	ListCollections(ctx context.Context) ([]*core.Collection, error)

	// Upsert writes points into the collection in batches and returns the
	// number stored. Points with blank text are ignored. Every vector must
	// match the collection dimension or nothing is written. Failed batches
	// are skipped; ErrNothingStored is returned only if no point was stored.
	Upsert(ctx context.Context, name string, points ...*core.Point) (int, error)

	// Search returns up to limit points ranked by cosine similarity to vector
	// (highest first).
	Search(ctx context.Context, name string, vector []float32, limit int) ([]*core.SearchResult, error)

	// Points iterates over every point in the collection in key order.
	// Iteration stops at the first error, which is yielded with a nil point.
	Points(ctx context.Context, name string) iter.Seq2[*core.Point, error]

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (int, error)

	// DeleteCollection removes the collection and all of its points.
	// Returns ErrCollectionNotFound if it doesn't exist.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}
