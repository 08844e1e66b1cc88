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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/sitebot"
	"github.com/poiesic/sitebot/config"
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/ingestion"
	"github.com/poiesic/sitebot/metrics"
)

// extraDatabaseOptions are appended when opening the database.
var extraDatabaseOptions []sitebot.DatabaseOption

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "collection",
		Aliases:  []string{"c"},
		Usage:    "Collection name",
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sitebot",
		Usage: "Turn a website into a searchable knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides ai.embedding_host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides ai.embedding_model)",
			},
			&cli.StringFlag{
				Name:  "chat-host",
				Usage: "Chat service host URL (overrides ai.chat_host)",
			},
			&cli.StringFlag{
				Name:  "chat-model",
				Usage: "Chat model name (overrides ai.chat_model)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "crawl",
				Usage:  "Crawl a website and ingest its text into a collection",
				Action: crawlCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Aliases:  []string{"u"},
						Usage:    "Seed URL to start crawling from",
						Required: true,
					},
					collectionFlag(),
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "Maximum number of pages to crawl (0 for unlimited)",
					},
					&cli.BoolFlag{
						Name:  "robots",
						Usage: "Respect robots.txt",
					},
					&cli.StringFlag{
						Name:  "extractor",
						Usage: "Text extractor to use (tags, readability)",
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "How often to report progress",
						Value: 1 * time.Second,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address while crawling",
					},
				},
			},
			{
				Name:      "ingest-file",
				Usage:     "Ingest local documents (.txt, .md, .html, .htm, .svg, .pdf)",
				ArgsUsage: "FILE...",
				Action:    ingestFileCommand,
				Flags:     []cli.Flag{collectionFlag()},
			},
			{
				Name:      "search",
				Usage:     "Find the chunks of a collection most relevant to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					collectionFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 3,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the contents of a collection",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags:     []cli.Flag{collectionFlag()},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every point of a collection with the configured embedder",
				Action: reembedCommand,
				Flags: []cli.Flag{
					collectionFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of points to embed in each request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N points",
						Value: 100,
					},
				},
			},
			{
				Name:   "collections",
				Usage:  "List collections",
				Action: collectionsCommand,
			},
			{
				Name:   "drop",
				Usage:  "Delete a collection and all of its points",
				Action: dropCommand,
				Flags:  []cli.Flag{collectionFlag()},
			},
		},
	}
}

// loadConfig reads the configuration file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("embedding-host") {
		cfg.AI.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("chat-host") {
		cfg.AI.ChatHost = c.String("chat-host")
	}
	if c.IsSet("chat-model") {
		cfg.AI.ChatModel = c.String("chat-model")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config, opts ...sitebot.DatabaseOption) (*sitebot.Database, error) {
	opts = append([]sitebot.DatabaseOption{sitebot.WithConfig(cfg)}, opts...)
	opts = append(opts, extraDatabaseOptions...)
	db, err := sitebot.NewDatabase(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func crawlCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("max-pages") {
		cfg.Crawl.MaxPages = c.Int("max-pages")
	}
	if c.IsSet("robots") {
		cfg.Crawl.Robots = c.Bool("robots")
	}
	if c.IsSet("extractor") {
		cfg.Crawl.Extractor = c.String("extractor")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var dbOpts []sitebot.DatabaseOption
	if addr := c.String("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		collectors, err := metrics.NewCollectors(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		dbOpts = append(dbOpts, sitebot.WithMetrics(collectors))

		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "addr", addr, "err", err)
			}
		}()
		defer srv.Close()
	}

	db, err := openDatabase(cfg, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := pipeline.StartIngestion(c.String("url"), c.String("collection"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Started task %s\n", id)

	task, err := waitForTask(ctx, c, pipeline, id)
	if err != nil {
		return err
	}

	switch task.Phase {
	case core.PhaseCompleted:
		fmt.Fprintf(c.App.Writer, "Ingested %d pages into %q: %d chunks, %d points stored\n",
			task.Result.PagesScraped, task.Result.Collection, task.Result.ChunksCreated, task.Result.PointsStored)
		return nil
	case core.PhaseCancelled:
		return errors.New("crawl cancelled")
	default:
		return fmt.Errorf("crawl failed: %s", task.Error)
	}
}

// waitForTask reports progress until the task finishes. Interrupting ctx
// cancels the task and keeps waiting for it to wind down.
func waitForTask(ctx context.Context, c *cli.Context, pipeline *ingestion.Pipeline, id string) (core.CrawlTask, error) {
	ticker := time.NewTicker(c.Duration("poll-interval"))
	defer ticker.Stop()

	done := ctx.Done()
	var last core.CrawlTask
	for {
		task, err := pipeline.GetProgress(id)
		if err != nil {
			return task, err
		}
		if task.Phase != last.Phase || task.PagesScraped != last.PagesScraped || task.ChunksCreated != last.ChunksCreated {
			fmt.Fprintf(c.App.ErrWriter, "%-22s pages: %d chunks: %d\n", task.Phase, task.PagesScraped, task.ChunksCreated)
			last = task
		}
		if task.Phase.IsTerminal() {
			return task, nil
		}

		select {
		case <-done:
			fmt.Fprintln(c.App.ErrWriter, "Interrupted, cancelling task")
			if err := pipeline.Cancel(id); err != nil {
				return task, err
			}
			done = nil
		case <-ticker.C:
		}
	}
}

func ingestFileCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	collection := c.String("collection")
	for _, path := range c.Args().Slice() {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		result, err := pipeline.IngestDocument(c.Context, collection, filepath.Base(path), content)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: %d chunks, %d points stored in %q\n",
			path, result.ChunksCreated, result.PointsStored, result.Collection)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.Search(c.Context, c.String("collection"), query, c.Int("limit"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] %s\n   %s\n", i, hit.Score, hit.Point.Source, hit.Point.Text)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	responder, err := db.NewResponder()
	if err != nil {
		return err
	}

	answer, err := responder.Ask(c.Context, c.String("collection"), question)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(c.App.Writer)
		fmt.Fprintln(c.App.Writer, "Sources:")
		for _, source := range answer.Sources {
			fmt.Fprintf(c.App.Writer, "  %s\n", source)
		}
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Validate flags
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	cfg.Reembed.BatchSize = c.Int("batch-size")
	cfg.Reembed.ReportInterval = c.Int("report-interval")

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if err := db.NewReembedder(c.App.ErrWriter).Run(c.Context, c.String("collection")); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func collectionsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collections, err := db.Store().ListCollections(c.Context)
	if err != nil {
		return err
	}
	for _, col := range collections {
		count, err := db.Store().Count(c.Context, col.Name)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\tdimension=%d\tpoints=%d\tcreated=%s\n",
			col.Name, col.Dimension, count, col.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func dropCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	name := c.String("collection")
	if err := db.Store().DeleteCollection(c.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Dropped collection %q\n", name)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
