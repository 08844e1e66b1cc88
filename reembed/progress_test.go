package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every reading.
func fakeClock(step time.Duration) func() time.Time {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func newTestTracker(buf *bytes.Buffer, total, interval int) *ProgressTracker {
	tracker := NewProgressTracker(buf, "Embedding", total, interval)
	tracker.now = fakeClock(time.Second)
	return tracker
}

func TestProgressTracker_ReportsAtIntervals(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 100, 25)
	tracker.Start()

	tracker.Update(10)
	assert.Empty(t, buf.String(), "below the interval nothing is printed")

	tracker.Update(30)
	tracker.Add(10)
	tracker.Add(20)

	lines := strings.Split(strings.TrimPrefix(buf.String(), "\r"), "\r")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Embedding: 30/100 (30.0%)"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Embedding: 60/100 (60.0%)"), lines[1])
}

func TestProgressTracker_Rate(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 10, 1)
	tracker.Start()
	tracker.Update(4) // one second after Start

	assert.Contains(t, buf.String(), "4.0 points/s")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 100, 10)
	tracker.Start()
	tracker.Update(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100 (100.0%)")
	assert.True(t, strings.HasSuffix(output, "\n"))

	buf.Reset()
	tracker.Update(100)
	tracker.Finish()
	assert.Empty(t, buf.String(), "a finished tracker is silent")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 10, 1)
	tracker.Start()
	tracker.Add(25)

	assert.Contains(t, buf.String(), "10/10")
	assert.NotContains(t, buf.String(), "25/10")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 10, 1)

	tracker.Update(5)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 0, 1)
	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0 (0.0%)")
}

func TestProgressTracker_Elapsed(t *testing.T) {
	tracker := NewProgressTracker(nil, "Storing", 1, 1)
	tracker.now = fakeClock(time.Minute)
	tracker.Start()

	assert.Equal(t, time.Minute, tracker.Elapsed())
}

func TestProgressTracker_IntervalBelowOne(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 3, 0)
	tracker.Start()
	tracker.Add(1)
	tracker.Add(1)

	assert.Equal(t, 2, strings.Count(buf.String(), "\r"))
}
