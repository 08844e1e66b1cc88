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


package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/sitebot/core"
)

// DefaultThrottleWindow is how long a running task's snapshot is reused.
const DefaultThrottleWindow = 2 * time.Second

// Registry stores ingestion tasks.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Create inserts a new task. Returns ErrDuplicate if the ID is taken.
	Create(task core.CrawlTask) error

	// Update applies fn to the live task and stamps UpdatedAt.
	// Terminal tasks are not modified. Returns ErrNotFound for unknown IDs.
	Update(id string, fn func(*core.CrawlTask)) error

	// Get returns a snapshot of the task. Returns ErrNotFound for unknown IDs.
	Get(id string) (core.CrawlTask, error)

	// List returns snapshots of all tasks, newest first.
	List() []core.CrawlTask

	// Sweep removes expired terminal tasks and returns how many were removed.
	Sweep() int
}

type entry struct {
	task     core.CrawlTask
	cached   core.CrawlTask
	cachedAt time.Time
	hasCache bool
}

// MemoryRegistry is a Registry backed by a map and a single mutex.
type MemoryRegistry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	window    time.Duration
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

var _ Registry = (*MemoryRegistry)(nil)

// Option configures a MemoryRegistry.
type Option func(*MemoryRegistry) error

// WithThrottleWindow sets how long Get reuses a running task's snapshot.
// Zero disables throttling. Default is 2s.
func WithThrottleWindow(d time.Duration) Option {
	return func(r *MemoryRegistry) error {
		if d < 0 {
			d = 0
		}
		r.window = d
		return nil
	}
}

// WithRetention makes Sweep drop terminal tasks last updated more than d ago.
// Zero, the default, keeps tasks forever.
func WithRetention(d time.Duration) Option {
	return func(r *MemoryRegistry) error {
		if d < 0 {
			d = 0
		}
		r.retention = d
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *MemoryRegistry) error {
		if now == nil {
			now = time.Now
		}
		r.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *MemoryRegistry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry(opts ...Option) (*MemoryRegistry, error) {
	r := &MemoryRegistry{
		entries: make(map[string]*entry),
		window:  DefaultThrottleWindow,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "task_registry")
	return r, nil
}

// Create inserts a new task, stamping CreatedAt and UpdatedAt when unset.
func (r *MemoryRegistry) Create(task core.CrawlTask) error {
	if err := core.ValidateTask(&task); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, task.ID)
	}

	now := r.now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = now
	}
	task.Completed = task.Phase == core.PhaseCompleted
	r.entries[task.ID] = &entry{task: task.Clone()}
	return nil
}

// Update applies fn under the registry lock.
func (r *MemoryRegistry) Update(id string, fn func(*core.CrawlTask)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.task.Phase.IsTerminal() {
		r.logger.Debug("ignoring update to finished task", "task", id, "phase", e.task.Phase)
		return nil
	}

	fn(&e.task)
	e.task.ID = id
	e.task.Completed = e.task.Phase == core.PhaseCompleted
	e.task.UpdatedAt = r.now().UTC()
	return nil
}

// Get returns a snapshot of the task.
//
// A running task read within the throttle window of the previous read
// returns that read's snapshot unchanged.
func (r *MemoryRegistry) Get(id string) (core.CrawlTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return core.CrawlTask{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if e.task.Phase.IsTerminal() {
		return e.task.Clone(), nil
	}

	now := r.now()
	if e.hasCache && now.Sub(e.cachedAt) < r.window {
		return e.cached.Clone(), nil
	}

	e.cached = e.task.Clone()
	e.cachedAt = now
	e.hasCache = true
	return e.cached.Clone(), nil
}

// List returns snapshots of all tasks, newest first. It bypasses the throttle.
func (r *MemoryRegistry) List() []core.CrawlTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]core.CrawlTask, 0, len(r.entries))
	for _, e := range r.entries {
		tasks = append(tasks, e.task.Clone())
	}
	sortNewestFirst(tasks)
	return tasks
}

// Sweep removes terminal tasks older than the retention period.
func (r *MemoryRegistry) Sweep() int {
	if r.retention == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().UTC().Add(-r.retention)
	removed := 0
	for id, e := range r.entries {
		if e.task.Phase.IsTerminal() && e.task.UpdatedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("swept finished tasks", "removed", removed)
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *MemoryRegistry) RunSweeper(ctx context.Context, interval time.Duration) {
	if r.retention == 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func sortNewestFirst(tasks []core.CrawlTask) {
	slices.SortFunc(tasks, func(a, b core.CrawlTask) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
