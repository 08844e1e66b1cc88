package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/storage"
)

const (
	// DefaultLimit is the number of results returned when none is requested.
	DefaultLimit = 3

	// DefaultKeywordBoost is added to a result's score per matching keyword.
	DefaultKeywordBoost float32 = 0.1
)

// Searcher provides semantic search with a keyword boost over a vector store.
type Searcher struct {
	store    storage.VectorStore
	embedder ai.Embedder
	boost    float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithKeywordBoost sets the score added per matching keyword.
// Zero disables the boost.
func WithKeywordBoost(boost float32) Option {
	return func(s *Searcher) error {
		if boost < 0 {
			boost = 0
		}
		s.boost = boost
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		boost:    DefaultKeywordBoost,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search returns up to limit chunks of collection relevant to query, best first.
// A limit of zero or less means DefaultLimit.
func (s *Searcher) Search(ctx context.Context, collection, query string, limit int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, collection, query, limit, nil)
}

// SearchWithMonitor searches like Search, reporting each stage to monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, collection, query string, limit int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	keywords := Keywords(query)
	monitor.Start(query, keywords)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	candidates, err := s.store.Search(ctx, collection, embedding, limit*2)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "collection", collection, "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(candidates)

	results := make([]*core.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.Point == nil {
			continue
		}
		r := &core.SearchResult{Point: c.Point, Score: c.Score}
		r.KeywordMatches = keywordMatches(c.Point.Text, keywords)
		if r.KeywordMatches > 0 {
			r.Score += float32(r.KeywordMatches) * s.boost
			monitor.KeywordHit(r)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	monitor.Finish(results)

	s.logger.Debug("search complete", "collection", collection, "candidates", len(candidates), "results", len(results))
	return results, nil
}
