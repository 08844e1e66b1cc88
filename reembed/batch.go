package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/retry"
	"github.com/poiesic/sitebot/storage"
)

// BatchProcessor generates fresh vectors for batches of points.
type BatchProcessor struct {
	embedder ai.Embedder
	policy   retry.Policy
}

// NewBatchProcessor creates a new batch processor that retries embedding
// calls according to policy.
func NewBatchProcessor(embedder ai.Embedder, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{
		embedder: embedder,
		policy:   policy,
	}
}

// Process replaces the vector of every point with a normalized embedding of its text.
// Points are modified in place; nothing is written to storage.
func (bp *BatchProcessor) Process(ctx context.Context, points []*core.Point) error {
	if len(points) == 0 {
		return nil
	}

	texts := make([]string, len(points))
	for i, point := range points {
		texts[i] = point.Text
	}

	var embeddings [][]float32
	err := retry.Do(ctx, bp.policy, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.policy.MaxAttempts, err)
	}

	if len(embeddings) != len(points) {
		return fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(points), len(embeddings))
	}

	for i := range points {
		points[i].Vector = storage.NormalizeVector(embeddings[i])
	}
	return nil
}
