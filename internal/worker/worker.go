// Package worker implements the per-URL scrape pipeline execution loop.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"autoria-harvester/internal/harvest"
	"autoria-harvester/internal/metrics"
	"autoria-harvester/internal/queue"
)

// Pool fans queue consumption out over a fixed number of workers. Each
// worker runs fetch → extract → phone lookup → upsert per URL, isolates
// per-URL failures, and terminates on its sentinel.
type Pool struct {
	fetcher   harvest.Fetcher
	extractor harvest.Extractor
	phones    harvest.PhoneResolver
	store     harvest.ListingStore
	workers   int
	logger    *zap.Logger
}

// NewPool constructs a Pool.
func NewPool(
	fetcher harvest.Fetcher,
	extractor harvest.Extractor,
	phones harvest.PhoneResolver,
	store harvest.ListingStore,
	workers int,
	logger *zap.Logger,
) *Pool {
	return &Pool{
		fetcher:   fetcher,
		extractor: extractor,
		phones:    phones,
		store:     store,
		workers:   workers,
		logger:    logger,
	}
}

// Run starts the workers and blocks until every one has consumed its
// sentinel or the context ends.
func (p *Pool) Run(ctx context.Context, q harvest.Queue, stats *harvest.RunStats) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id, q, stats)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int, q harvest.Queue, stats *harvest.RunStats) {
	log := p.logger.With(zap.Int("worker", id))
	for {
		url, err := q.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("dequeue failed", zap.Error(err))
			}
			return
		}
		if url == queue.Sentinel {
			log.Debug("sentinel received, worker done")
			return
		}
		p.processURL(ctx, log, url, stats)
		stats.AddProcessed()
	}
}

// processURL runs the full pipeline for one listing URL. No failure here
// may stop the worker; everything lands in the errors counter instead.
func (p *Pool) processURL(ctx context.Context, log *zap.Logger, url string, stats *harvest.RunStats) {
	body, ok := p.fetcher.Fetch(ctx, url)
	if !ok {
		stats.AddError()
		return
	}

	listing, lookup := p.extractor.Extract(body, url)
	if lookup != nil {
		if phone, ok := p.phones.Resolve(ctx, *lookup); ok {
			listing.PhoneNumber = harvest.String(phone)
		}
	}

	inserted, err := p.store.Upsert(ctx, listing)
	if err != nil {
		log.Error("persist listing failed", zap.String("url", url), zap.Error(err))
		stats.AddError()
		return
	}

	if inserted {
		stats.AddInserted()
		metrics.ObserveListing("inserted")
		log.Info("listing inserted", zap.String("url", url), zap.Stringp("title", listing.Title))
	} else {
		stats.AddUpdated()
		metrics.ObserveListing("updated")
		log.Info("listing updated", zap.String("url", url), zap.Stringp("title", listing.Title))
	}
}
