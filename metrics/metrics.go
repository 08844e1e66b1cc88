// Package metrics exposes Prometheus collectors for crawling and ingestion.
//
// A nil *Collectors is valid and records nothing, so components can hold an
// optional collector without branching at every call site.
package metrics

import (
	"errors"
	"time"

	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/crawl"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebot"

// Collectors groups every metric the ingestion pipeline reports.
type Collectors struct {
	pagesFetched  prometheus.Counter
	pagesSkipped  prometheus.Counter
	chunksCreated prometheus.Counter
	pointsStored  prometheus.Counter
	tasks         *prometheus.CounterVec
	activeTasks   prometheus.Gauge
	phaseDuration *prometheus.HistogramVec
}

var _ crawl.Monitor = (*Collectors)(nil)

// NewCollectors creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched and accepted as HTML.",
		}),
		pagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "pages_skipped_total",
			Help:      "Dequeued URLs that yielded no usable page.",
		}),
		chunksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_created_total",
			Help:      "Text chunks produced from crawled pages and uploads.",
		}),
		pointsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "points_stored_total",
			Help:      "Vector points written to the store.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "tasks_total",
			Help:      "Ingestion tasks by terminal phase.",
		}, []string{"phase"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "active_tasks",
			Help:      "Ingestion tasks currently running.",
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "phase_duration_seconds",
			Help:      "Time spent in each ingestion phase.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"phase"}),
	}

	if reg == nil {
		return c, nil
	}

	var errs []error
	for _, col := range c.all() {
		if err := reg.Register(col); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.pagesFetched, c.pagesSkipped, c.chunksCreated, c.pointsStored,
		c.tasks, c.activeTasks, c.phaseDuration,
	}
}

func (c *Collectors) Start(_ string) {}

func (c *Collectors) PageVisited(_ string, _ int) {
	if c == nil {
		return
	}
	c.pagesFetched.Inc()
}

func (c *Collectors) PageSkipped(_ string) {
	if c == nil {
		return
	}
	c.pagesSkipped.Inc()
}

func (c *Collectors) Finish(_ *crawl.Result) {}

// TaskStarted marks a run as active.
func (c *Collectors) TaskStarted() {
	if c == nil {
		return
	}
	c.activeTasks.Inc()
}

// TaskFinished records the terminal phase of a run.
func (c *Collectors) TaskFinished(phase core.Phase) {
	if c == nil {
		return
	}
	c.activeTasks.Dec()
	c.tasks.WithLabelValues(phase.String()).Inc()
}

// ObservePhase records how long a run spent in phase.
func (c *Collectors) ObservePhase(phase core.Phase, d time.Duration) {
	if c == nil {
		return
	}
	c.phaseDuration.WithLabelValues(phase.String()).Observe(d.Seconds())
}

// AddChunks counts chunks produced.
func (c *Collectors) AddChunks(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.chunksCreated.Add(float64(n))
}

// AddPoints counts points written.
func (c *Collectors) AddPoints(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.pointsStored.Add(float64(n))
}
