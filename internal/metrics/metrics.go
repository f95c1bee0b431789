// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal      *prometheus.CounterVec
	fetchRetriesTotal prometheus.Counter
	listingsTotal     *prometheus.CounterVec
	phoneLookupsTotal *prometheus.CounterVec
	runsTotal         prometheus.Counter
	runDurationSecs   prometheus.Histogram
	queueDepth        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetches_total",
				Help: "Total page fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_retries_total",
				Help: "Total fetch retries after 429/5xx or transport errors.",
			},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_listings_total",
				Help: "Total listings persisted, labeled by upsert outcome.",
			},
			[]string{"outcome"},
		)

		phoneLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_phone_lookups_total",
				Help: "Total phone-reveal API calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_runs_total",
				Help: "Total scrape cycles completed.",
			},
		)

		runDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvester_run_duration_seconds",
				Help:    "Histogram of scrape cycle durations.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_queue_depth",
				Help: "Number of listing URLs currently buffered in the work queue.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the final outcome of one fetch ("ok" or "failed").
func ObserveFetch(outcome string) {
	fetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchRetry counts one retried fetch attempt.
func ObserveFetchRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveListing records an upsert outcome ("inserted" or "updated").
func ObserveListing(outcome string) {
	listingsTotal.WithLabelValues(outcome).Inc()
}

// ObservePhoneLookup records a phone API outcome ("ok" or "failed").
func ObservePhoneLookup(outcome string) {
	phoneLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun records a completed scrape cycle and its duration.
func ObserveRun(d time.Duration) {
	runsTotal.Inc()
	runDurationSecs.Observe(d.Seconds())
}

// SetQueueDepth updates the queue depth gauge.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
