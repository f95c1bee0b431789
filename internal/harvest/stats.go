package harvest

import "sync/atomic"

// RunStats accumulates per-run counters. Workers increment concurrently, so
// every counter is atomic; lost updates would corrupt the run report.
type RunStats struct {
	total    atomic.Int64
	inserted atomic.Int64
	updated  atomic.Int64
	errors   atomic.Int64
}

// AddProcessed bumps the total count of handled queue items.
func (s *RunStats) AddProcessed() { s.total.Add(1) }

// AddInserted records a listing persisted as a fresh row.
func (s *RunStats) AddInserted() { s.inserted.Add(1) }

// AddUpdated records a listing merged into an existing row.
func (s *RunStats) AddUpdated() { s.updated.Add(1) }

// AddError records a per-URL failure that did not stop the run.
func (s *RunStats) AddError() { s.errors.Add(1) }

// Snapshot returns a point-in-time copy of the counters.
func (s *RunStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:    s.total.Load(),
		Inserted: s.inserted.Load(),
		Updated:  s.updated.Load(),
		Errors:   s.errors.Load(),
	}
}

// StatsSnapshot is the immutable view returned to the caller of a run.
type StatsSnapshot struct {
	Total    int64 `json:"total"`
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Errors   int64 `json:"errors"`
}
