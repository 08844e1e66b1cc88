package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored points.
// It is derived from content so that re-ingesting identical text overwrites instead of duplicating.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// PointID derives the ID of a chunk stored in a collection.
func PointID(collection, text string) ID {
	return IDFromContent(collection + "\x00" + text)
}

// Phase is the lifecycle stage of an ingestion task.
type Phase string

const (
	PhaseCrawling             Phase = "crawling"
	PhaseProcessing           Phase = "processing"
	PhaseGeneratingEmbeddings Phase = "generating_embeddings"
	PhaseStoring              Phase = "storing"
	PhaseCompleted            Phase = "completed"
	PhaseError                Phase = "error"
	PhaseCancelled            Phase = "cancelled"
)

// IsTerminal reports whether no further transitions happen from p.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseError, PhaseCancelled:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return string(p)
}

// TaskResult summarizes a completed ingestion.
type TaskResult struct {
	Collection    string
	PagesScraped  int
	ChunksCreated int
	PointsStored  int
}

// CrawlTask tracks a single ingestion run.
// Values handed out by the registry are snapshots; mutating them has no effect on the task.
type CrawlTask struct {
	ID            string
	SeedURL       string
	Collection    string
	Phase         Phase
	PagesScraped  int
	ChunksCreated int
	Error         string // Human readable failure, empty unless Phase is PhaseError
	Completed     bool
	Result        *TaskResult
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy of the task.
func (t CrawlTask) Clone() CrawlTask {
	if t.Result != nil {
		r := *t.Result
		t.Result = &r
	}
	return t
}

// Page is a fetched HTML document. Pages are transient and never persisted.
type Page struct {
	URL  string
	HTML string
}

// Chunk is a contiguous piece of extracted text ready for embedding.
type Chunk struct {
	Index  int    // Position in the run's ordered chunk list
	Text   string
	Source string // Page URL or uploaded filename
}

// Point is a chunk stored with its embedding vector.
type Point struct {
	ID         ID
	Collection string
	Text       string
	Source     string
	ChunkIndex int
	Vector     []float32
	CreatedAt  time.Time
}

// SearchResult represents a search result with the full point and relevance score.
type SearchResult struct {
	Point          *Point
	Score          float32
	KeywordMatches int
}

// Collection is a named partition of the vector store, one per knowledge source.
type Collection struct {
	Name      string
	Dimension int
	CreatedAt time.Time
}
