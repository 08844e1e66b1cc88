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


package crawl

import (
	"context"
	"log/slog"

	"github.com/poiesic/sitebot/core"
)

// State is the lifecycle of a single crawl.
type State string

const (
	StatePending  State = "pending"
	StateCrawling State = "crawling"
	StateDone     State = "done"
)

// Result is the outcome of a crawl.
type Result struct {
	Seed  string
	Pages []core.Page // In visit order
	State State
}

// Map returns the crawled pages keyed by URL.
func (r *Result) Map() map[string]string {
	m := make(map[string]string, len(r.Pages))
	for _, p := range r.Pages {
		m[p.URL] = p.HTML
	}
	return m
}

// robotsLoader is implemented by fetchers that can read robots.txt.
type robotsLoader interface {
	LoadRobots(ctx context.Context, seed string) *Robots
}

// Crawler performs breadth-first traversal of one website.
// A Crawler holds no per-crawl state and may run several crawls concurrently.
type Crawler struct {
	fetcher  PageFetcher
	maxPages int
	robots   bool
	logger   *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler) error

// WithMaxPages stops the crawl once n pages have been visited.
// Zero, the default, means no limit.
func WithMaxPages(n int) Option {
	return func(c *Crawler) error {
		if n < 0 {
			n = 0
		}
		c.maxPages = n
		return nil
	}
}

// WithRobots makes the crawler honor robots.txt when the fetcher supports it.
// Default is false.
func WithRobots(enabled bool) Option {
	return func(c *Crawler) error {
		c.robots = enabled
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCrawler creates a new crawler.
func NewCrawler(fetcher PageFetcher, opts ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	c := &Crawler{
		fetcher: fetcher,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "crawler")

	return c, nil
}

// Crawl visits every page reachable from seed on the seed's host.
func (c *Crawler) Crawl(ctx context.Context, seed string) (*Result, error) {
	return c.CrawlWithMonitor(ctx, seed, nil)
}

// CrawlWithMonitor crawls like Crawl, reporting progress to monitor.
//
// The returned result is never nil. If ctx is cancelled the pages visited so
// far are returned together with ctx.Err().
func (c *Crawler) CrawlWithMonitor(ctx context.Context, seed string, monitor Monitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	result := &Result{Seed: seed, State: StatePending}
	monitor.Start(seed)

	var robots *Robots
	if loader, ok := c.fetcher.(robotsLoader); ok && c.robots {
		robots = loader.LoadRobots(ctx, seed)
	}

	result.State = StateCrawling
	frontier := []string{seed}
	queued := Set{seed: {}}
	visited := Set{}

	var err error
	for len(frontier) > 0 {
		if err = ctx.Err(); err != nil {
			break
		}
		if c.maxPages > 0 && len(visited) >= c.maxPages {
			break
		}

		current := frontier[0]
		frontier = frontier[1:]

		if visited.Has(current) {
			continue
		}
		if !robots.Allowed(current) {
			c.logger.Debug("disallowed by robots.txt", "url", current)
			monitor.PageSkipped(current)
			continue
		}

		body := c.fetcher.Fetch(ctx, current)
		if body == "" {
			monitor.PageSkipped(current)
			continue
		}

		visited.Add(current)
		result.Pages = append(result.Pages, core.Page{URL: current, HTML: body})
		monitor.PageVisited(current, len(visited))

		for _, link := range ExtractLinks(current, body) {
			if IsEligible(link, seed, visited, queued) {
				queued.Add(link)
				frontier = append(frontier, link)
			}
		}
	}

	result.State = StateDone
	c.logger.Info("crawl finished", "seed", seed, "pages", len(result.Pages), "queued", len(queued))
	monitor.Finish(result)
	return result, err
}
