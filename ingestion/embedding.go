package ingestion

import (
	"context"
	"fmt"

	"github.com/poiesic/sitebot/core"
)

// DefaultEmbedBatchSize is the number of chunks sent per embedding request.
const DefaultEmbedBatchSize = 100

// embed generates one vector per chunk, in order.
func (p *Pipeline) embed(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	texts := chunkTexts(chunks)
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]

		p.logger.Debug("generating embeddings", "from", start, "count", len(batch))
		embeddings, err := p.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			p.logger.Error("error generating embeddings", "err", err)
			return nil, fmt.Errorf("error generating embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(embeddings))
		}
		vectors = append(vectors, embeddings...)
	}
	return vectors, nil
}

// persist writes chunks and their vectors to collection, creating it on
// first use.
func (p *Pipeline) persist(ctx context.Context, collection string, chunks []core.Chunk, vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrEmbeddingMismatch
	}

	points := make([]*core.Point, len(chunks))
	for i, c := range chunks {
		points[i] = &core.Point{
			Collection: collection,
			Text:       c.Text,
			Source:     c.Source,
			ChunkIndex: c.Index,
			Vector:     vectors[i],
		}
	}

	if err := p.store.EnsureCollection(ctx, collection, len(vectors[0])); err != nil {
		p.logger.Error("error preparing collection", "collection", collection, "err", err)
		return 0, fmt.Errorf("error preparing collection %q: %w", collection, err)
	}

	stored, err := p.store.Upsert(ctx, collection, points...)
	if err != nil {
		p.logger.Error("error storing points", "collection", collection, "points", len(points), "err", err)
		return 0, fmt.Errorf("error storing data: %w", err)
	}

	p.metrics.AddPoints(stored)
	return stored, nil
}
