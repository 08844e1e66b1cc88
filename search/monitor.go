package search

import "github.com/poiesic/sitebot/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string, keywords []string)
	AfterVectorSearch(candidates []*core.SearchResult)
	KeywordHit(result *core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []string)               {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) KeywordHit(_ *core.SearchResult)          {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)            {}
