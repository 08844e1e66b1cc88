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


// Package config loads sitebot settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/sitebot/ai"
	"github.com/poiesic/sitebot/chunk"
	"github.com/poiesic/sitebot/crawl"
	"github.com/poiesic/sitebot/reembed"
	"github.com/poiesic/sitebot/retry"
)

// Configuration validation errors.
var (
	ErrMissingStoragePath   = errors.New("storage.path is required")
	ErrInvalidMaxPages      = errors.New("crawl.max_pages must be non-negative")
	ErrInvalidRateLimit     = errors.New("crawl.rate_limit must be non-negative")
	ErrInvalidTimeout       = errors.New("crawl.timeout must be positive")
	ErrUnknownExtractor     = errors.New("crawl.extractor must be 'tags' or 'readability'")
	ErrInvalidPoolSize      = errors.New("pool_size must be non-negative")
	ErrInvalidMaxQueued     = errors.New("max_queued_tasks must be non-negative")
	ErrInvalidBatchSize     = errors.New("embed_batch_size must be non-negative")
	ErrInvalidThrottle      = errors.New("tasks.throttle_window must be non-negative")
	ErrInvalidRetention     = errors.New("tasks.retention must be non-negative")
	ErrInvalidSweepInterval = errors.New("tasks.sweep_interval must be non-negative")
)

// Config is the complete sitebot configuration.
type Config struct {
	AI       ai.Config      `yaml:"ai"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Storage  StorageConfig  `yaml:"storage"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Reembed  reembed.Config `yaml:"reembed"`
	Retry    retry.Policy   `yaml:"retry"`

	// PoolSize bounds concurrent ingestion runs. Zero picks a default
	PoolSize int `yaml:"pool_size"`

	// MaxQueuedTasks caps ingestions waiting for a free worker; further
	// ones fail as busy. Zero queues without limit
	MaxQueuedTasks int `yaml:"max_queued_tasks"`

	// EmbedBatchSize is the number of chunks per embedding request
	EmbedBatchSize int `yaml:"embed_batch_size"`
}

// CrawlConfig holds crawler and fetcher settings.
type CrawlConfig struct {
	// MaxPages caps pages per crawl. Zero means unlimited
	MaxPages  int           `yaml:"max_pages"`
	Robots    bool          `yaml:"robots"`
	RateLimit time.Duration `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Extractor string        `yaml:"extractor"`
}

// ChunkingConfig holds chunk sizes for crawled pages and uploaded documents.
type ChunkingConfig struct {
	Crawl  chunk.Config `yaml:"crawl"`
	Upload chunk.Config `yaml:"upload"`
}

// StorageConfig locates the vector store.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// TasksConfig governs the progress registry.
type TasksConfig struct {
	ThrottleWindow time.Duration `yaml:"throttle_window"`
	Retention      time.Duration `yaml:"retention"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		AI: *ai.DefaultConfig(),
		Crawl: CrawlConfig{
			Timeout:   crawl.DefaultTimeout,
			UserAgent: crawl.DefaultUserAgent,
			Extractor: "tags",
		},
		Chunking: ChunkingConfig{
			Crawl:  chunk.CrawlConfig(),
			Upload: chunk.UploadConfig(),
		},
		Storage: StorageConfig{
			Path: "sitebot.db",
		},
		Tasks: TasksConfig{
			ThrottleWindow: 2 * time.Second,
			SweepInterval:  time.Minute,
		},
		Reembed:        *reembed.DefaultConfig(),
		Retry:          retry.DefaultPolicy(),
		EmbedBatchSize: 100,
	}
}

// Load reads path over the defaults and validates the result.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.AI.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.AI.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.Path == "" {
		errs = append(errs, ErrMissingStoragePath)
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, ErrInvalidMaxPages)
	}
	if c.Crawl.RateLimit < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.Crawl.Timeout <= 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	if _, ok := crawl.NewExtractor(c.Crawl.Extractor); !ok {
		errs = append(errs, ErrUnknownExtractor)
	}
	if err := c.Chunking.Crawl.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking.crawl: %w", err))
	}
	if err := c.Chunking.Upload.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("chunking.upload: %w", err))
	}
	if c.Tasks.ThrottleWindow < 0 {
		errs = append(errs, ErrInvalidThrottle)
	}
	if c.Tasks.Retention < 0 {
		errs = append(errs, ErrInvalidRetention)
	}
	if c.Tasks.SweepInterval < 0 {
		errs = append(errs, ErrInvalidSweepInterval)
	}
	if c.PoolSize < 0 {
		errs = append(errs, ErrInvalidPoolSize)
	}
	if c.MaxQueuedTasks < 0 {
		errs = append(errs, ErrInvalidMaxQueued)
	}
	if c.EmbedBatchSize < 0 {
		errs = append(errs, ErrInvalidBatchSize)
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry: %w", retry.ErrInvalidMaxAttempts))
	}
	if c.Reembed.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("reembed.retry: %w", retry.ErrInvalidMaxAttempts))
	}

	return errors.Join(errs...)
}
