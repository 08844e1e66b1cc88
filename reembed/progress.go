package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a single updating status line for one stage of a
// reembedding run, e.g. "Embedding: 300/1200 (25.0%) - 41.7 points/s".
type ProgressTracker struct {
	mu sync.Mutex

	writer   io.Writer
	stage    string
	total    int
	interval int
	now      func() time.Time

	done     int
	reported int
	began    time.Time
	running  bool
}

// NewProgressTracker creates a tracker for total points that prints after
// every interval points. Intervals below one print on every change.
func NewProgressTracker(writer io.Writer, stage string, total, interval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:   writer,
		stage:    stage,
		total:    total,
		interval: max(interval, 1),
		now:      time.Now,
	}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.began = p.now()
	p.running = true
	p.done = 0
	p.reported = 0
}

// Update records that done points have been handled so far.
func (p *ProgressTracker) Update(done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(done)
}

// Add records delta more handled points.
func (p *ProgressTracker) Add(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(p.done + delta)
}

func (p *ProgressTracker) set(done int) {
	if !p.running {
		return
	}
	p.done = min(done, p.total)
	if p.done-p.reported >= p.interval {
		p.print()
		p.reported = p.done
	}
}

// Finish prints the completed line and ends it with a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.writer)
	p.running = false
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.began.IsZero() {
		return 0
	}
	return p.now().Sub(p.began)
}

// print writes the status line. Caller holds mu.
func (p *ProgressTracker) print() {
	var rate, percent float64
	if secs := p.now().Sub(p.began).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total) * 100
	}
	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f points/s", p.stage, p.done, p.total, percent, rate)
}
