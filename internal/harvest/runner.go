package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autoria-harvester/internal/metrics"
)

// WorkerPool consumes the queue until every worker has seen its sentinel.
type WorkerPool interface {
	Run(ctx context.Context, q Queue, stats *RunStats)
}

// QueueFactory builds the bounded queue for one run.
type QueueFactory func() Queue

// Runner is the single entry point for one scrape cycle: it starts the
// producer and the worker pool concurrently over a fresh queue, waits for
// both, and returns the aggregate counters.
type Runner struct {
	producer Producer
	pool     WorkerPool
	newQueue QueueFactory
	logger   *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(producer Producer, pool WorkerPool, newQueue QueueFactory, logger *zap.Logger) *Runner {
	return &Runner{
		producer: producer,
		pool:     pool,
		newQueue: newQueue,
		logger:   logger,
	}
}

// Run executes one scrape cycle and returns its statistics. The run always
// completes: per-URL failures only surface through the errors counter.
func (r *Runner) Run(ctx context.Context) StatsSnapshot {
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("scrape cycle starting")
	started := time.Now()

	q := r.newQueue()
	stats := &RunStats{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.producer.Discover(ctx, q)
	}()

	r.pool.Run(ctx, q, stats)
	wg.Wait()

	elapsed := time.Since(started)
	metrics.ObserveRun(elapsed)

	snap := stats.Snapshot()
	log.Info("scrape cycle finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("total", snap.Total),
		zap.Int64("inserted", snap.Inserted),
		zap.Int64("updated", snap.Updated),
		zap.Int64("errors", snap.Errors),
	)
	return snap
}
