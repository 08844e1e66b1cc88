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


package reembed

import (
	"context"

	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/storage"
)

const (
	// DefaultBatchSize is the default number of points embedded per request
	DefaultBatchSize = 100
)

// PointIterator hands out the points of a collection in fixed-size batches.
type PointIterator struct {
	store     storage.VectorStore
	batchSize int
}

// NewPointIterator creates an iterator over store.
// A batchSize of zero or less means DefaultBatchSize.
func NewPointIterator(store storage.VectorStore, batchSize int) *PointIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PointIterator{
		store:     store,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of the collection's points.
// The points are read in full before the first call, so fn may write to the
// collection safely.
func (it *PointIterator) ForEach(ctx context.Context, collection string, fn func([]*core.Point) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var points []*core.Point
	for point, err := range it.store.Points(ctx, collection) {
		if err != nil {
			return err
		}
		points = append(points, point)
	}

	for i := 0; i < len(points); i += it.batchSize {
		end := min(i+it.batchSize, len(points))

		if err := fn(points[i:end]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
