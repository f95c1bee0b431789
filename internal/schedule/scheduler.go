// Package schedule runs jobs at a fixed wall-clock time each day.
package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"autoria-harvester/internal/config"
)

// Job is a unit of scheduled work. It receives the scheduler's context and
// is expected to return when that context is canceled.
type Job func(ctx context.Context)

// Scheduler fires a named job once per day at a configured time.
type Scheduler struct {
	name   string
	at     config.Clock
	job    Job
	logger *zap.Logger
	now    func() time.Time
}

// NewDaily returns a scheduler that runs job every day at the given time.
func NewDaily(name string, at config.Clock, job Job, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:   name,
		at:     at,
		job:    job,
		logger: logger,
		now:    time.Now,
	}
}

// Run blocks, firing the job at each daily tick, until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := s.untilNext()
		s.logger.Info("next scheduled run",
			zap.String("job", s.name),
			zap.Duration("in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.job(ctx)
	}
}

// untilNext computes the duration until the next occurrence of the
// configured time of day. A target at or before now rolls to tomorrow;
// AddDate handles month and year boundaries.
func (s *Scheduler) untilNext() time.Duration {
	now := s.now()
	target := time.Date(now.Year(), now.Month(), now.Day(),
		s.at.Hour, s.at.Minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now)
}
