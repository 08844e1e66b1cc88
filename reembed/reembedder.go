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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/retry"
	"github.com/poiesic/sitebot/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of points embedded per request
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of points)
	ReportInterval int `yaml:"report_interval"`

	// Retry governs retries of failed embedding requests
	Retry retry.Policy `yaml:"retry"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Retry:          retry.DefaultPolicy(),
	}
}

// Reembedder orchestrates the reembedding of all points in a collection.
type Reembedder struct {
	store     storage.VectorStore
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *PointIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(embedder, config.Retry),
		iterator:  NewPointIterator(store, config.BatchSize),
	}
}

// Run reembeds every point of collection with the configured embedder.
// New vectors are only written once every batch has been embedded, so a
// failure part way through leaves the collection untouched. If the new
// vectors have a different dimension the collection is recreated.
func (r *Reembedder) Run(ctx context.Context, collection string) error {
	if collection == "" {
		return ErrCollectionRequired
	}

	existing, err := r.store.GetCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to look up collection: %w", err)
	}

	total, err := r.store.Count(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to count points: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No points found in collection %q (0 points)\n", collection)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d points (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, "Embedding", total, r.config.ReportInterval)
	tracker.Start()

	reembedded := make([]*core.Point, 0, total)
	err = r.iterator.ForEach(ctx, collection, func(points []*core.Point) error {
		if err := r.processor.Process(ctx, points); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		reembedded = append(reembedded, points...)
		tracker.Update(len(reembedded))
		return nil
	})
	if err != nil {
		return err
	}
	tracker.Finish()

	dimension := len(reembedded[0].Vector)
	if dimension != existing.Dimension {
		fmt.Fprintf(r.progress, "Dimension changed from %d to %d, recreating collection\n",
			existing.Dimension, dimension)
		if err := r.store.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		if err := r.store.EnsureCollection(ctx, collection, dimension); err != nil {
			return fmt.Errorf("failed to recreate collection: %w", err)
		}
	}

	storing := NewProgressTracker(r.progress, "Storing", len(reembedded), r.config.ReportInterval)
	storing.Start()
	for i := 0; i < len(reembedded); i += r.iterator.batchSize {
		end := min(i+r.iterator.batchSize, len(reembedded))
		if _, err := r.store.Upsert(ctx, collection, reembedded[i:end]...); err != nil {
			return fmt.Errorf("failed to store points: %w", err)
		}
		storing.Update(end)
	}
	storing.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d points in %v (%.1f points/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
