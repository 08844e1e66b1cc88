// Package chunk splits extracted text into overlapping, sentence-aligned
// pieces sized for embedding.
//
// Chunk is a pure function: identical input and parameters always produce
// identical output. Sizes are measured in characters (runes) and count only
// sentence text, not the single spaces used to join sentences. A sentence
// longer than the target size is never split; it becomes its own chunk.
//
// Two presets are provided. CrawlConfig uses small chunks tuned for short
// crawled page fragments, UploadConfig larger chunks for whole documents.
package chunk
