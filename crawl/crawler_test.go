package crawl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureSite serves a fixed set of HTML pages and counts GET requests per path.
type fixtureSite struct {
	*httptest.Server
	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

func newFixtureSite(pages map[string]string) *fixtureSite {
	s := &fixtureSite{pages: pages, hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *fixtureSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if r.Method == http.MethodGet {
		s.hits[r.URL.Path]++
	}
	s.mu.Unlock()

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, strings.ReplaceAll(body, "{{host}}", s.URL))
}

func (s *fixtureSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *fixtureSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func newTestCrawler(t *testing.T, opts ...Option) *Crawler {
	t.Helper()
	f, err := NewFetcher()
	require.NoError(t, err)
	c, err := NewCrawler(f, opts...)
	require.NoError(t, err)
	return c
}

func TestNewCrawler_RequiresFetcher(t *testing.T) {
	_, err := NewCrawler(nil)
	assert.Equal(t, ErrFetcherRequired, err)
}

func TestCrawl_SameDomainOnceEach(t *testing.T) {
	external := newFixtureSite(map[string]string{
		"/x": `<p>External page should never be visited.</p>`,
	})
	defer external.Close()

	site := newFixtureSite(map[string]string{
		"/": `<a href="/a">A</a> <a href="/b">B</a> <a href="{{host}}/c">C</a>
		      <a href="d">D</a> <a href="` + external.URL + `/x">X</a>`,
		"/a": `<a href="/">home</a> <a href="/b">B again</a>`,
		"/b": `<a href="/a">A again</a> <a href="/c">C</a>`,
		"/c": `<a href="/d">D</a> <a href="/">home</a>`,
		"/d": `<a href="/a">A</a> <a href="/c">C</a>`,
	})
	defer site.Close()

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), site.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	require.Len(t, result.Pages, 5)
	for _, path := range []string{"/", "/a", "/b", "/c", "/d"} {
		assert.Equal(t, 1, site.hitCount(path), "path %s", path)
	}
	assert.Zero(t, external.totalHits())

	// Breadth-first: the seed's direct links come before pages only reachable deeper.
	urls := make([]string, len(result.Pages))
	for i, p := range result.Pages {
		urls[i] = strings.TrimPrefix(p.URL, site.URL)
	}
	assert.Equal(t, []string{"/", "/a", "/b", "/c", "/d"}, urls)
	assert.Len(t, result.Map(), 5)
}

func TestCrawl_FailedPageNotRetried(t *testing.T) {
	site := newFixtureSite(map[string]string{
		"/":   `<a href="/ok">ok</a> <a href="/missing">missing</a>`,
		"/ok": `<a href="/missing">missing again</a> <a href="/">home</a>`,
	})
	defer site.Close()

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), site.URL+"/")
	require.NoError(t, err)

	assert.Len(t, result.Pages, 2)
	assert.Equal(t, 1, site.hitCount("/missing"))
	assert.NotContains(t, result.Map(), site.URL+"/missing")
}

func TestCrawl_SkipsFilteredLinks(t *testing.T) {
	site := newFixtureSite(map[string]string{
		"/": `<a href="/doc.pdf">pdf</a> <a href="/#top">top</a>
		      <a href="mailto:me@example.com">mail</a> <a href="/page">page</a>`,
		"/page":    `<p>content</p>`,
		"/doc.pdf": `not really a pdf`,
	})
	defer site.Close()

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), site.URL+"/")
	require.NoError(t, err)

	assert.Len(t, result.Pages, 2)
	assert.Zero(t, site.hitCount("/doc.pdf"))
}

func TestCrawl_EmptySeed(t *testing.T) {
	site := newFixtureSite(map[string]string{})
	defer site.Close()

	c := newTestCrawler(t)
	result, err := c.Crawl(context.Background(), site.URL+"/")
	require.NoError(t, err)
	assert.Empty(t, result.Pages)
	assert.Equal(t, StateDone, result.State)
}

func TestCrawl_MaxPages(t *testing.T) {
	site := newFixtureSite(map[string]string{
		"/":  `<a href="/a">A</a> <a href="/b">B</a> <a href="/c">C</a>`,
		"/a": `<p>a</p>`,
		"/b": `<p>b</p>`,
		"/c": `<p>c</p>`,
	})
	defer site.Close()

	c := newTestCrawler(t, WithMaxPages(2))
	result, err := c.Crawl(context.Background(), site.URL+"/")
	require.NoError(t, err)
	assert.Len(t, result.Pages, 2)
	assert.Zero(t, site.hitCount("/b"))
}

func TestCrawl_Cancelled(t *testing.T) {
	site := newFixtureSite(map[string]string{"/": `<p>home</p>`})
	defer site.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCrawler(t)
	result, err := c.Crawl(ctx, site.URL+"/")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Pages)
	assert.Equal(t, StateDone, result.State)
	assert.Zero(t, site.totalHits())
}

func TestCrawl_Robots(t *testing.T) {
	site := newFixtureSite(map[string]string{
		"/robots.txt": "User-agent: *\nDisallow: /private\n",
		"/":           `<a href="/public">pub</a> <a href="/private">priv</a>`,
		"/public":     `<p>public</p>`,
		"/private":    `<p>private</p>`,
	})
	defer site.Close()

	t.Run("ignored by default", func(t *testing.T) {
		c := newTestCrawler(t)
		result, err := c.Crawl(context.Background(), site.URL+"/")
		require.NoError(t, err)
		assert.Len(t, result.Pages, 3)
	})

	t.Run("honored when enabled", func(t *testing.T) {
		c := newTestCrawler(t, WithRobots(true))
		result, err := c.Crawl(context.Background(), site.URL+"/")
		require.NoError(t, err)
		assert.Len(t, result.Pages, 2)
		assert.NotContains(t, result.Map(), site.URL+"/private")
	})
}

type recordingMonitor struct {
	started  string
	visited  []int
	skipped  []string
	finished *Result
}

func (m *recordingMonitor) Start(seed string)              { m.started = seed }
func (m *recordingMonitor) PageVisited(_ string, n int)    { m.visited = append(m.visited, n) }
func (m *recordingMonitor) PageSkipped(url string)         { m.skipped = append(m.skipped, url) }
func (m *recordingMonitor) Finish(result *Result)          { m.finished = result }

func TestCrawlWithMonitor(t *testing.T) {
	site := newFixtureSite(map[string]string{
		"/":  `<a href="/a">A</a> <a href="/gone">gone</a>`,
		"/a": `<p>a</p>`,
	})
	defer site.Close()

	mon := &recordingMonitor{}
	other := &recordingMonitor{}
	c := newTestCrawler(t)
	result, err := c.CrawlWithMonitor(context.Background(), site.URL+"/", Monitors{mon, other})
	require.NoError(t, err)

	assert.Equal(t, site.URL+"/", mon.started)
	assert.Equal(t, []int{1, 2}, mon.visited)
	assert.Equal(t, []string{site.URL + "/gone"}, mon.skipped)
	assert.Same(t, result, mon.finished)
	assert.Equal(t, mon.visited, other.visited)
}
