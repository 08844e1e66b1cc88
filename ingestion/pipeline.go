package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/chunk"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/crawl"
	"github.com/poiesic/sitebot/docs"
	"github.com/poiesic/sitebot/metrics"
	"github.com/poiesic/sitebot/storage"
	"github.com/poiesic/sitebot/tasks"
)

// Crawler discovers the pages of a website.
type Crawler interface {
	CrawlWithMonitor(ctx context.Context, seed string, monitor crawl.Monitor) (*crawl.Result, error)
}

var _ Crawler = (*crawl.Crawler)(nil)

// Pipeline orchestrates website and document ingestion.
// Website ingestions run as tasks on a bounded worker pool; tasks started
// while every worker is busy wait for a free one.
type Pipeline struct {
	store          storage.VectorStore
	embedder       ai.Embedder
	registry       tasks.Registry
	crawler        Crawler
	extractor      crawl.Extractor
	crawlChunking  chunk.Config
	uploadChunking chunk.Config
	maxPages       int
	batchSize      int
	metrics        *metrics.Collectors
	poolSize       int
	maxQueued      int
	pool           *ants.Pool
	logger         *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many ingestion tasks may run at once.
// Further tasks stay queued in the crawling phase until a worker frees up.
// Default is runtime.NumCPU(), with a minimum of 4.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithMaxQueuedTasks caps how many tasks may wait for a worker. A task
// arriving once the queue is full fails with ErrBusy.
// Zero, the default, queues without limit.
func WithMaxQueuedTasks(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			n = 0
		}
		p.maxQueued = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithCrawler replaces the default crawler.
// When set, WithMaxPages has no effect.
func WithCrawler(c Crawler) Option {
	return func(p *Pipeline) error {
		p.crawler = c
		return nil
	}
}

// WithExtractor sets how page text is extracted.
// Default is crawl.TagExtractor.
func WithExtractor(e crawl.Extractor) Option {
	return func(p *Pipeline) error {
		if e == nil {
			e = crawl.TagExtractor{}
		}
		p.extractor = e
		return nil
	}
}

// WithCrawlChunking sets chunk sizes for crawled pages.
// Default is chunk.CrawlConfig().
func WithCrawlChunking(cfg chunk.Config) Option {
	return func(p *Pipeline) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.crawlChunking = cfg
		return nil
	}
}

// WithUploadChunking sets chunk sizes for uploaded documents.
// Default is chunk.UploadConfig().
func WithUploadChunking(cfg chunk.Config) Option {
	return func(p *Pipeline) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.uploadChunking = cfg
		return nil
	}
}

// WithMaxPages caps pages per crawl for the default crawler.
// Zero, the default, means no cap.
func WithMaxPages(n int) Option {
	return func(p *Pipeline) error {
		if n < 0 {
			n = 0
		}
		p.maxPages = n
		return nil
	}
}

// WithMetrics reports crawl and ingestion counters to c.
func WithMetrics(c *metrics.Collectors) Option {
	return func(p *Pipeline) error {
		p.metrics = c
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per request.
// Default is DefaultEmbedBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// newPool builds a blocking pool. Submit waits for a free worker unless
// maxQueued callers are already waiting, in which case it fails with
// ants.ErrPoolOverload.
func newPool(size, maxQueued int) (*ants.Pool, error) {
	opts := []ants.Option{ants.WithNonblocking(false)}
	if maxQueued > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(maxQueued))
	}
	return ants.NewPool(size, opts...)
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.VectorStore,
	embedder ai.Embedder,
	registry tasks.Registry,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}

	p := &Pipeline{
		store:          store,
		embedder:       embedder,
		registry:       registry,
		extractor:      crawl.TagExtractor{},
		crawlChunking:  chunk.CrawlConfig(),
		uploadChunking: chunk.UploadConfig(),
		batchSize:      DefaultEmbedBatchSize,
		poolSize:       max(runtime.NumCPU(), 4),
		logger:         slog.Default(),
		cancels:        make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	pool, err := newPool(p.poolSize, p.maxQueued)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	if p.crawler == nil {
		fetcher, err := crawl.NewFetcher(crawl.WithFetcherLogger(p.logger))
		if err != nil {
			p.Release()
			return nil, err
		}
		crawler, err := crawl.NewCrawler(fetcher, crawl.WithMaxPages(p.maxPages), crawl.WithLogger(p.logger))
		if err != nil {
			p.Release()
			return nil, err
		}
		p.crawler = crawler
	}

	return p, nil
}

// StartIngestion registers a task for seedURL and runs it in the background.
// It returns the task ID as soon as the task is registered, without waiting
// for a free worker. Invalid input is rejected without creating a task; every
// later failure is recorded on the task.
func (p *Pipeline) StartIngestion(seedURL, collection string) (string, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := core.ValidateSeedURL(seedURL); err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	err := p.registry.Create(core.CrawlTask{
		ID:         id,
		SeedURL:    seedURL,
		Collection: collection,
		Phase:      core.PhaseCrawling,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancels[id] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	p.metrics.TaskStarted()
	p.logger.Info("ingestion queued", "task", id, "seed", seedURL, "collection", collection)
	go p.submit(ctx, id, seedURL, collection)
	return id, nil
}

// submit hands the task to the pool, waiting for a free worker.
// A task cancelled while queued finishes without running.
func (p *Pipeline) submit(ctx context.Context, id, seedURL, collection string) {
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		defer p.forget(id)
		if err := ctx.Err(); err != nil {
			p.finish(ctx, id, nil, err)
			return
		}
		p.logger.Info("ingestion started", "task", id, "seed", seedURL, "collection", collection)
		result, runErr := p.run(ctx, id, seedURL, collection)
		p.finish(ctx, id, result, runErr)
	})
	if err == nil {
		return
	}

	defer p.wg.Done()
	p.logger.Warn("ingestion pool rejected task", "task", id, "err", err)
	if errors.Is(err, ants.ErrPoolOverload) {
		err = fmt.Errorf("%w: %w", ErrBusy, err)
	}
	p.finish(ctx, id, nil, err)
	p.forget(id)
}

// GetProgress returns a snapshot of the task.
func (p *Pipeline) GetProgress(taskID string) (core.CrawlTask, error) {
	return p.registry.Get(taskID)
}

// Tasks returns snapshots of every known task, newest first.
func (p *Pipeline) Tasks() []core.CrawlTask {
	return p.registry.List()
}

// Cancel stops a running task. The task finishes in the cancelled phase.
// Cancelling a finished task is a no-op.
func (p *Pipeline) Cancel(taskID string) error {
	p.mu.Lock()
	cancel, ok := p.cancels[taskID]
	p.mu.Unlock()

	if ok {
		p.logger.Info("cancelling ingestion", "task", taskID)
		cancel()
		return nil
	}
	_, err := p.registry.Get(taskID)
	return err
}

// IngestDocument extracts, chunks, embeds and stores an uploaded file.
// It runs synchronously and returns the counts of what was stored.
func (p *Pipeline) IngestDocument(ctx context.Context, collection, filename string, content []byte) (*core.TaskResult, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}

	text, err := docs.ExtractText(filename, content)
	if err != nil {
		p.logger.Warn("failed to extract document text", "file", filename, "err", err)
		return nil, err
	}

	chunks := appendChunks(nil, text, filename, p.uploadChunking)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	p.logger.Info("created chunks from document", "file", filename, "chunks", len(chunks))
	p.metrics.AddChunks(len(chunks))

	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	stored, err := p.persist(ctx, collection, chunks, vectors)
	if err != nil {
		return nil, err
	}

	return &core.TaskResult{
		Collection:    collection,
		ChunksCreated: len(chunks),
		PointsStored:  stored,
	}, nil
}

// Wait blocks until every started task has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release cancels running tasks and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()

	if p.pool != nil {
		p.pool.Release()
	}
}

// run executes one website ingestion. Panics are returned as errors.
func (p *Pipeline) run(ctx context.Context, id, seedURL, collection string) (result *core.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered panic in ingestion run", "task", id, "panic", r)
			result, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	logger := p.logger.With("task", id)

	started := time.Now()
	var monitor crawl.Monitor = &progressMonitor{registry: p.registry, taskID: id, logger: logger}
	if p.metrics != nil {
		monitor = crawl.Monitors{monitor, p.metrics}
	}
	crawled, err := p.crawler.CrawlWithMonitor(ctx, seedURL, monitor)
	p.metrics.ObservePhase(core.PhaseCrawling, time.Since(started))
	if err != nil {
		return nil, err
	}
	if crawled == nil || len(crawled.Pages) == 0 {
		return nil, ErrNoPages
	}
	pages := len(crawled.Pages)
	logger.Info("crawl complete", "pages", pages)

	started = time.Now()
	p.setPhase(id, core.PhaseProcessing, func(t *core.CrawlTask) { t.PagesScraped = pages })
	chunks := chunkPages(crawled.Pages, p.extractor, p.crawlChunking)
	p.metrics.ObservePhase(core.PhaseProcessing, time.Since(started))
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("created chunks", "chunks", len(chunks))
	p.metrics.AddChunks(len(chunks))

	started = time.Now()
	p.setPhase(id, core.PhaseGeneratingEmbeddings, func(t *core.CrawlTask) { t.ChunksCreated = len(chunks) })
	vectors, err := p.embed(ctx, chunks)
	p.metrics.ObservePhase(core.PhaseGeneratingEmbeddings, time.Since(started))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started = time.Now()
	p.setPhase(id, core.PhaseStoring, nil)
	stored, err := p.persist(ctx, collection, chunks, vectors)
	p.metrics.ObservePhase(core.PhaseStoring, time.Since(started))
	if err != nil {
		return nil, err
	}

	return &core.TaskResult{
		Collection:    collection,
		PagesScraped:  pages,
		ChunksCreated: len(chunks),
		PointsStored:  stored,
	}, nil
}

// finish moves the task to its terminal phase.
func (p *Pipeline) finish(ctx context.Context, id string, result *core.TaskResult, err error) {
	phase := core.PhaseCompleted
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.Canceled):
		phase = core.PhaseCancelled
		err = ErrCancelled
	default:
		phase = core.PhaseError
	}

	updateErr := p.registry.Update(id, func(t *core.CrawlTask) {
		t.Phase = phase
		if err != nil {
			t.Error = err.Error()
			return
		}
		t.Result = result
		t.PagesScraped = result.PagesScraped
		t.ChunksCreated = result.ChunksCreated
	})
	if updateErr != nil {
		p.logger.Error("failed to record task outcome", "task", id, "phase", phase, "err", updateErr)
	}

	p.metrics.TaskFinished(phase)
	if err != nil && phase == core.PhaseError {
		p.logger.Error("ingestion failed", "task", id, "err", err)
		return
	}
	p.logger.Info("ingestion finished", "task", id, "phase", phase)
}

func (p *Pipeline) setPhase(id string, phase core.Phase, fn func(*core.CrawlTask)) {
	err := p.registry.Update(id, func(t *core.CrawlTask) {
		t.Phase = phase
		if fn != nil {
			fn(t)
		}
	})
	if err != nil {
		p.logger.Warn("failed to update task phase", "task", id, "phase", phase, "err", err)
	}
}

func (p *Pipeline) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.cancels[id]; ok {
		cancel()
		delete(p.cancels, id)
	}
}
