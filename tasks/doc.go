// Package tasks keeps the in-process record of ingestion tasks.
//
// A Registry is the single shared piece of mutable state between concurrent
// ingestion runs and the callers polling their progress. The in-memory
// implementation guards its map with one mutex; updates are small and happen
// once per phase transition, so contention is negligible.
//
// Reads are throttled: repeated Get calls for a running task within a short
// window return the same snapshot. Terminal tasks (completed, error,
// cancelled) are always returned as-is and never change again.
//
// Entries are kept for the life of the process unless a retention period is
// configured, in which case Sweep removes terminal tasks older than it.
package tasks
