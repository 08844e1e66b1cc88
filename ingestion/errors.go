package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRegistryRequired is returned when a task registry is not provided.
	ErrRegistryRequired = errors.New("task registry required")

	// ErrNoPages is recorded when a crawl yields no pages.
	// Task error messages are shown to users verbatim.
	ErrNoPages = errors.New("No pages could be scraped from the provided URL")

	// ErrNoContent is recorded when crawled pages yield no chunks.
	ErrNoContent = errors.New("No valid text content found to ingest from the website")

	// ErrNoChunks is returned when an uploaded document yields no chunks.
	ErrNoChunks = errors.New("no valid text chunks could be created from the file")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than chunks submitted.
	ErrEmbeddingMismatch = errors.New("embedding result mismatch")

	// ErrCancelled is recorded on tasks stopped by Cancel.
	ErrCancelled = errors.New("ingestion cancelled")

	// ErrBusy is recorded on tasks rejected because the queue is full.
	ErrBusy = errors.New("ingestion service busy")

	// ErrPanic wraps a panic recovered from a run.
	ErrPanic = errors.New("ingestion run panicked")
)
