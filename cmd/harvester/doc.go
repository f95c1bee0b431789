// Package main hosts the harvester service entrypoint.
//
// Architecture overview:
//   - Discovery: internal/producer walks the paginated search index, extracts listing detail URLs, and feeds them
//     into a bounded queue. When discovery ends it enqueues one sentinel per worker so the pool drains and stops.
//   - Worker pool: internal/worker runs a fixed number of goroutines, each consuming URLs and executing the
//     fetch → extract → phone lookup → upsert pipeline. Per-URL failures are counted and never abort the cycle.
//   - Fetching: internal/fetcher wraps net/http with randomized browser profiles, jittered pacing, Retry-After
//     handling, and exponential backoff on 429/5xx. Non-retryable statuses abort the URL without error.
//   - Extraction: internal/extract reads schema.org ld+json first and falls back to CSS selectors for anything
//     the structured payload missed. Out-of-range odometer values and malformed VINs are discarded.
//   - Persistence: internal/storage/postgres upserts listings keyed by URL through pgxpool; a known phone number
//     is never overwritten by an absent one, and the insert/update distinction feeds the run statistics.
//   - Scheduling & backups: internal/schedule fires the daily scrape and the daily pg_dump export produced by
//     internal/dump. On startup a scrape cycle and a dump run immediately before the schedules take over.
//   - Configuration & plumbing: Viper populates config from file/env (HARVESTER_ prefix); zap provides structured
//     logging; Prometheus metrics are exported through the chi-based ops server (/healthz, /readyz, /metrics).
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool, sentinel-terminated. Shutdown is coordinated via
//     context cancellation propagated from main through the runner to producer and workers.
//   - Run modes: default runs a scrape + dump and then the daily schedules; -once runs a single scrape cycle and
//     exits; -dump writes one backup and exits.
//   - Observability: zap logs carry a run ID per cycle; counters track fetch outcomes, retries, phone lookups,
//     and insert/update totals; queue depth is exported as a gauge.
//
// Quick checklist:
//   - Configure env vars: HARVESTER_DB_DSN, HARVESTER_SCRAPE_START_URL, HARVESTER_SCRAPE_WORKERS,
//     HARVESTER_OPS_PORT, HARVESTER_DUMP_DIR, and the daily times when the defaults do not fit.
//   - Run locally: go run ./cmd/harvester -config config.yaml (or rely solely on env overrides).
//   - pg_dump must be on PATH for the backup job; dumps land in the configured directory as dump_YYYYMMDD_HHMM.sql.
package main
