package ai

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when an embedding service produces
// vectors of an unexpected length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrCountMismatch is returned when a batch embedding call returns a
// different number of vectors than texts submitted.
var ErrCountMismatch = errors.New("embedding count mismatch")

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a chat completion from a system instruction and a user prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the chat completion service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
