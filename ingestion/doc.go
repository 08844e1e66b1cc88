// Package ingestion turns websites and uploaded documents into searchable
// vector points.
//
// A Pipeline runs each website ingestion as a background task:
//   - Crawling the seed's host breadth-first
//   - Extracting text and splitting it into overlapping chunks
//   - Generating embeddings
//   - Storing points in a collection of the vector store
//
// Progress is published to a tasks.Registry and read with GetProgress. Runs
// never return errors to the caller that started them; failures are recorded
// on the task. Uploaded documents take the synchronous IngestDocument path.
package ingestion
