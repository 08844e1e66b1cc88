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


package sitebot

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/ai/openai"
	"github.com/poiesic/sitebot/config"
	"github.com/poiesic/sitebot/crawl"
	"github.com/poiesic/sitebot/ingestion"
	"github.com/poiesic/sitebot/metrics"
	"github.com/poiesic/sitebot/qa"
	"github.com/poiesic/sitebot/reembed"
	"github.com/poiesic/sitebot/search"
	"github.com/poiesic/sitebot/storage"
	"github.com/poiesic/sitebot/storage/badger"
	"github.com/poiesic/sitebot/tasks"
)

type Database struct {
	store    *badger.VectorStore
	writer   *storage.RetryingStore
	registry *tasks.MemoryRegistry
	provider ai.AIProvider
	config   *config.Config
	metrics  *metrics.Collectors
	logger   *slog.Logger

	stopSweeper context.CancelFunc
	sweeper     sync.WaitGroup
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	config   *config.Config
	provider ai.AIProvider
	metrics  *metrics.Collectors
	logger   *slog.Logger
}

// WithConfig sets the configuration. Default is config.Default().
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithProvider replaces the OpenAI-compatible provider built from the AI config.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithMetrics records pipeline activity on c.
func WithMetrics(c *metrics.Collectors) DatabaseOption {
	return func(o *databaseOptions) {
		o.metrics = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens the vector store at filePath and wires up the AI
// provider and task registry described by the configuration.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config

	store, err := badger.OpenVectorStore(filePath, badger.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}

	writer, err := storage.NewRetryingStore(store, cfg.Retry)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry, err := tasks.NewMemoryRegistry(
		tasks.WithThrottleWindow(cfg.Tasks.ThrottleWindow),
		tasks.WithRetention(cfg.Tasks.Retention),
		tasks.WithLogger(options.logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(&cfg.AI)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	db := &Database{
		store:       store,
		writer:      writer,
		registry:    registry,
		provider:    provider,
		config:      cfg,
		metrics:     options.metrics,
		logger:      options.logger,
		stopSweeper: cancel,
	}

	db.sweeper.Add(1)
	go func() {
		defer db.sweeper.Done()
		registry.RunSweeper(ctx, cfg.Tasks.SweepInterval)
	}()

	return db, nil
}

func (db *Database) Close() error {
	db.stopSweeper()
	db.sweeper.Wait()

	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}

// Store returns the vector store. Collection and point writes made through
// it are retried under the configured retry policy.
func (db *Database) Store() storage.VectorStore {
	return db.writer
}

func (db *Database) Registry() tasks.Registry {
	return db.registry
}

func (db *Database) Config() *config.Config {
	return db.config
}

// NewIngestionPipeline builds a pipeline from the configuration.
// opts are applied after the configured ones and take precedence.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	crawler, err := db.newCrawler()
	if err != nil {
		return nil, err
	}
	extractor, ok := crawl.NewExtractor(db.config.Crawl.Extractor)
	if !ok {
		return nil, config.ErrUnknownExtractor
	}

	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithCrawler(crawler),
		ingestion.WithExtractor(extractor),
		ingestion.WithCrawlChunking(db.config.Chunking.Crawl),
		ingestion.WithUploadChunking(db.config.Chunking.Upload),
		ingestion.WithMaxQueuedTasks(db.config.MaxQueuedTasks),
		ingestion.WithMetrics(db.metrics),
	}
	if db.config.PoolSize > 0 {
		base = append(base, ingestion.WithPoolSize(db.config.PoolSize))
	}
	if db.config.EmbedBatchSize > 0 {
		base = append(base, ingestion.WithBatchSize(db.config.EmbedBatchSize))
	}

	return ingestion.NewPipeline(db.writer, db.provider.Embedder(), db.registry, append(base, opts...)...)
}

func (db *Database) newCrawler() (*crawl.Crawler, error) {
	fetcher, err := crawl.NewFetcher(
		crawl.WithTimeout(db.config.Crawl.Timeout),
		crawl.WithUserAgent(db.config.Crawl.UserAgent),
		crawl.WithRateLimit(db.config.Crawl.RateLimit),
		crawl.WithFetcherLogger(db.logger),
	)
	if err != nil {
		return nil, err
	}
	return crawl.NewCrawler(fetcher,
		crawl.WithMaxPages(db.config.Crawl.MaxPages),
		crawl.WithRobots(db.config.Crawl.Robots),
		crawl.WithLogger(db.logger),
	)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.writer, db.provider.Embedder(), append([]search.Option{search.WithLogger(db.logger)}, opts...)...)
}

// NewResponder builds a question answerer that retrieves context through a
// default Searcher.
func (db *Database) NewResponder(opts ...qa.Option) (*qa.Responder, error) {
	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, err
	}
	return qa.NewResponder(searcher, db.provider.Generator(), append([]qa.Option{qa.WithLogger(db.logger)}, opts...)...)
}

func (db *Database) NewReembedder(progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.writer, db.provider.Embedder(), &db.config.Reembed, progress)
}
