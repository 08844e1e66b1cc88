package ingestion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/sitebot/ai/mock"
	"github.com/poiesic/sitebot/chunk"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/crawl"
	"github.com/poiesic/sitebot/docs"
	"github.com/poiesic/sitebot/metrics"
	"github.com/poiesic/sitebot/retry"
	"github.com/poiesic/sitebot/storage"
	"github.com/poiesic/sitebot/storage/badger"
	"github.com/poiesic/sitebot/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homePage = `<html><body>
<h1>Acme Widgets Home</h1>
<p>Acme builds durable widgets for industrial customers. Our widgets last for decades.</p>
<a href="/about">About</a>
<a href="https://other.example.com/elsewhere">Elsewhere</a>
</body></html>`

	aboutPage = `<html><body>
<p>Founded in 1999, Acme is a family owned company. We ship worldwide.</p>
<a href="/">Home</a>
</body></html>`
)

func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodHead {
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(t *testing.T) *badger.VectorStore {
	t.Helper()
	store, err := badger.NewMemoryVectorStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestPipeline(t *testing.T, store storage.VectorStore, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	registry, err := tasks.NewMemoryRegistry(tasks.WithThrottleWindow(0))
	require.NoError(t, err)

	p, err := NewPipeline(store, embedder, registry, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// stubCrawler reports each start on started and then defers to crawl.
type stubCrawler struct {
	started chan struct{}
	crawl   func(ctx context.Context, seed string) (*crawl.Result, error)
}

func newBlockingCrawler() *stubCrawler {
	return &stubCrawler{
		started: make(chan struct{}, 8),
		crawl: func(ctx context.Context, seed string) (*crawl.Result, error) {
			<-ctx.Done()
			return &crawl.Result{Seed: seed, State: crawl.StateDone}, ctx.Err()
		},
	}
}

func (s *stubCrawler) CrawlWithMonitor(ctx context.Context, seed string, _ crawl.Monitor) (*crawl.Result, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	return s.crawl(ctx, seed)
}

func awaitStart(t *testing.T, c *stubCrawler) {
	t.Helper()
	select {
	case <-c.started:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl never started")
	}
}

// countingStore wraps a VectorStore, failing the first failEnsure
// EnsureCollection calls.
type countingStore struct {
	storage.VectorStore
	failEnsure  int32
	ensureCalls atomic.Int32
	upsertCalls atomic.Int32
}

func (s *countingStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if s.ensureCalls.Add(1) <= s.failEnsure {
		return errors.New("connection reset")
	}
	return s.VectorStore.EnsureCollection(ctx, name, dimension)
}

func (s *countingStore) Upsert(ctx context.Context, name string, points ...*core.Point) (int, error) {
	s.upsertCalls.Add(1)
	return s.VectorStore.Upsert(ctx, name, points...)
}

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	store := newTestStore(t)
	registry, err := tasks.NewMemoryRegistry()
	require.NoError(t, err)
	embedder := mock.NewMockEmbedder()

	_, err = NewPipeline(nil, embedder, registry)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(store, nil, registry)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(store, embedder, nil)
	assert.ErrorIs(t, err, ErrRegistryRequired)
}

func TestStartIngestion_InvalidInput(t *testing.T) {
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder())

	tests := []struct {
		name       string
		seed       string
		collection string
	}{
		{"empty collection", "http://example.com/", ""},
		{"blank collection", "http://example.com/", "   "},
		{"relative url", "/about", "site"},
		{"unsupported scheme", "ftp://example.com/", "site"},
		{"not a url", "::::", "site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := p.StartIngestion(tt.seed, tt.collection)
			assert.Error(t, err)
			assert.Empty(t, id)
		})
	}
	assert.Empty(t, p.Tasks())
}

func TestStartIngestion_EndToEnd(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()
	collectors, err := metrics.NewCollectors(nil)
	require.NoError(t, err)
	p := newTestPipeline(t, store, embedder, WithMetrics(collectors))

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCompleted, task.Phase)
	assert.True(t, task.Completed)
	assert.Empty(t, task.Error)
	assert.Equal(t, 2, task.PagesScraped)
	assert.Equal(t, 4, task.ChunksCreated)
	require.NotNil(t, task.Result)
	assert.Equal(t, "acme", task.Result.Collection)
	assert.Equal(t, 2, task.Result.PagesScraped)
	assert.Equal(t, task.ChunksCreated, task.Result.PointsStored)

	count, err := store.Count(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, task.Result.PointsStored, count)

	col, err := store.GetCollection(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 384, col.Dimension)

	var sources []string
	for point, err := range store.Points(context.Background(), "acme") {
		require.NoError(t, err)
		sources = append(sources, point.Source)
	}
	assert.Contains(t, sources, site.URL+"/")
	assert.Contains(t, sources, site.URL+"/about")

	assert.Len(t, p.Tasks(), 1)
}

func TestStartIngestion_NoPages(t *testing.T) {
	site := newSite(t, map[string]string{})
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder())

	id, err := p.StartIngestion(site.URL+"/", "empty")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.False(t, task.Completed)
	assert.Equal(t, "No pages could be scraped from the provided URL", task.Error)
	assert.Nil(t, task.Result)
}

func TestStartIngestion_NoContent(t *testing.T) {
	site := newSite(t, map[string]string{
		"/":    `<html><body><p>Hi</p><a href="/two">next</a></body></html>`,
		"/two": `<html><body><span>short</span><script>var longScriptBody = 1;</script></body></html>`,
	})
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, newTestStore(t), embedder)

	id, err := p.StartIngestion(site.URL+"/", "thin")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Equal(t, "No valid text content found to ingest from the website", task.Error)
	assert.Equal(t, 2, task.PagesScraped)
	assert.Zero(t, embedder.CallCount())
}

func TestStartIngestion_EmbedderFailure(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	p := newTestPipeline(t, newTestStore(t), embedder)

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Contains(t, task.Error, "embedding service down")
	assert.Equal(t, 4, task.ChunksCreated)
}

func TestStartIngestion_EmbeddingMismatch(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return make([][]float32, len(texts)-1), nil
	}
	p := newTestPipeline(t, newTestStore(t), embedder)

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Contains(t, task.Error, ErrEmbeddingMismatch.Error())
}

func TestStartIngestion_EmbedsInBatches(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, newTestStore(t), embedder, WithBatchSize(3))

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	require.Equal(t, core.PhaseCompleted, task.Phase)
	assert.Equal(t, 2, embedder.CallCount())
	assert.Equal(t, 4, embedder.TextCount())
}

func TestStartIngestion_Cancel(t *testing.T) {
	crawler := newBlockingCrawler()
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder(), WithCrawler(crawler))

	id, err := p.StartIngestion("http://example.com/", "site")
	require.NoError(t, err)
	awaitStart(t, crawler)

	running, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCrawling, running.Phase)

	require.NoError(t, p.Cancel(id))
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCancelled, task.Phase)
	assert.Equal(t, ErrCancelled.Error(), task.Error)
	assert.False(t, task.Completed)

	assert.NoError(t, p.Cancel(id), "cancelling a finished task is a no-op")
	assert.ErrorIs(t, p.Cancel("missing"), tasks.ErrNotFound)
}

func TestStartIngestion_QueuesWhenPoolFull(t *testing.T) {
	crawler := newBlockingCrawler()
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder(), WithCrawler(crawler), WithPoolSize(1))

	first, err := p.StartIngestion("http://example.com/", "site")
	require.NoError(t, err)
	awaitStart(t, crawler)

	second, err := p.StartIngestion("http://example.org/", "other")
	require.NoError(t, err)

	select {
	case <-crawler.started:
		t.Fatal("queued task ran before a worker was free")
	case <-time.After(50 * time.Millisecond):
	}
	task, err := p.GetProgress(second)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCrawling, task.Phase)
	assert.Empty(t, task.Error)

	require.NoError(t, p.Cancel(first))
	awaitStart(t, crawler)

	require.NoError(t, p.Cancel(second))
	p.Wait()

	for _, id := range []string{first, second} {
		task, err := p.GetProgress(id)
		require.NoError(t, err)
		assert.Equal(t, core.PhaseCancelled, task.Phase)
	}
}

func TestStartIngestion_QueueLimit(t *testing.T) {
	crawler := newBlockingCrawler()
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder(),
		WithCrawler(crawler), WithPoolSize(1), WithMaxQueuedTasks(1))

	first, err := p.StartIngestion("http://example.com/", "site")
	require.NoError(t, err)
	awaitStart(t, crawler)

	second, err := p.StartIngestion("http://example.org/", "other")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.pool.Waiting() == 1 }, 5*time.Second, 5*time.Millisecond)

	third, err := p.StartIngestion("http://example.net/", "third")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := p.GetProgress(third)
		return err == nil && task.Phase == core.PhaseError
	}, 5*time.Second, 5*time.Millisecond)

	task, err := p.GetProgress(third)
	require.NoError(t, err)
	assert.Contains(t, task.Error, ErrBusy.Error())

	require.NoError(t, p.Cancel(first))
	awaitStart(t, crawler)
	require.NoError(t, p.Cancel(second))
	p.Wait()

	task, err = p.GetProgress(second)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCancelled, task.Phase)
}

func TestStartIngestion_CancelWhileQueued(t *testing.T) {
	crawler := newBlockingCrawler()
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder(), WithCrawler(crawler), WithPoolSize(1))

	first, err := p.StartIngestion("http://example.com/", "site")
	require.NoError(t, err)
	awaitStart(t, crawler)

	second, err := p.StartIngestion("http://example.org/", "other")
	require.NoError(t, err)
	require.NoError(t, p.Cancel(second))
	require.NoError(t, p.Cancel(first))
	p.Wait()

	select {
	case <-crawler.started:
		t.Fatal("task cancelled while queued was crawled")
	default:
	}
	task, err := p.GetProgress(second)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCancelled, task.Phase)
}

func TestStartIngestion_PanicBecomesError(t *testing.T) {
	crawler := &stubCrawler{crawl: func(ctx context.Context, seed string) (*crawl.Result, error) {
		panic("parser exploded")
	}}
	p := newTestPipeline(t, newTestStore(t), mock.NewMockEmbedder(), WithCrawler(crawler))

	id, err := p.StartIngestion("http://example.com/", "site")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Contains(t, task.Error, "parser exploded")
}

func TestStartIngestion_RetriesStoreWrites(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	counting := &countingStore{VectorStore: newTestStore(t), failEnsure: 2}
	store, err := storage.NewRetryingStore(counting, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	p := newTestPipeline(t, store, mock.NewMockEmbedder())

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseCompleted, task.Phase)
	assert.Equal(t, int32(3), counting.ensureCalls.Load())
	assert.Equal(t, int32(1), counting.upsertCalls.Load())
}

func TestStartIngestion_StoreFailure(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	store := &countingStore{VectorStore: newTestStore(t), failEnsure: 10}
	p := newTestPipeline(t, store, mock.NewMockEmbedder())

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Contains(t, task.Error, "connection reset")
	assert.Equal(t, int32(1), store.ensureCalls.Load(), "the pipeline itself does not retry")
	assert.Zero(t, store.upsertCalls.Load())
}

func TestStartIngestion_DimensionConflictNotRetried(t *testing.T) {
	site := newSite(t, map[string]string{"/": homePage, "/about": aboutPage})
	base := newTestStore(t)
	require.NoError(t, base.EnsureCollection(context.Background(), "acme", 3))
	counting := &countingStore{VectorStore: base}
	store, err := storage.NewRetryingStore(counting, retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	p := newTestPipeline(t, store, mock.NewMockEmbedder())

	id, err := p.StartIngestion(site.URL+"/", "acme")
	require.NoError(t, err)
	p.Wait()

	task, err := p.GetProgress(id)
	require.NoError(t, err)
	assert.Equal(t, core.PhaseError, task.Phase)
	assert.Contains(t, task.Error, storage.ErrDimensionMismatch.Error())
	assert.Equal(t, int32(1), counting.ensureCalls.Load())
}

func TestIngestDocument(t *testing.T) {
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockEmbedder(), WithUploadChunking(chunk.Config{Size: 40, Overlap: 10}))
	ctx := context.Background()

	content := []byte("Our store opens at nine. We close at five on weekdays.\n\nWeekend hours vary by season!")
	result, err := p.IngestDocument(ctx, "hours", "hours.txt", content)
	require.NoError(t, err)
	assert.Equal(t, "hours", result.Collection)
	assert.Zero(t, result.PagesScraped)
	assert.Equal(t, 3, result.ChunksCreated)
	assert.Equal(t, 3, result.PointsStored)

	for point, err := range store.Points(ctx, "hours") {
		require.NoError(t, err)
		assert.Equal(t, "hours.txt", point.Source)
	}

	t.Run("unsupported format", func(t *testing.T) {
		_, err := p.IngestDocument(ctx, "hours", "notes.docx", []byte("PK"))
		assert.ErrorIs(t, err, docs.ErrUnsupportedFormat)
	})

	t.Run("no text", func(t *testing.T) {
		_, err := p.IngestDocument(ctx, "hours", "empty.txt", []byte("### ***"))
		assert.ErrorIs(t, err, docs.ErrNoText)
	})

	t.Run("invalid collection", func(t *testing.T) {
		_, err := p.IngestDocument(ctx, "", "hours.txt", content)
		assert.Error(t, err)
	})
}
