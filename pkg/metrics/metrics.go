package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Package lifecycle
	PackagesCreated   prometheus.Counter
	PackagesProcessed prometheus.Counter
	PackagesFailed    prometheus.Counter
	WorkerRunDuration prometheus.Histogram

	// Stage adapters
	ScrapeRequests *prometheus.CounterVec
	SearchQueries  *prometheus.CounterVec
}

// New creates unregistered pipeline metrics. Call Register to expose them;
// tests can use them as-is without touching the default registry.
func New(namespace string) *Metrics {
	return &Metrics{
		PackagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_created_total",
			Help:      "Total number of send packages created by the broker",
		}),
		PackagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_processed_total",
			Help:      "Total number of packages reaching a sent or dry_run state",
		}),
		PackagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_failed_total",
			Help:      "Total number of packages routed to the failed state",
		}),
		WorkerRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_run_duration_seconds",
			Help:      "Time spent draining the pending directory",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		ScrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_requests_total",
			Help:      "Total number of scrape fetches by outcome",
		}, []string{"status"}),
		SearchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of search provider queries by outcome",
		}, []string{"status"}),
	}
}

// Register registers all metrics with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.PackagesCreated,
		m.PackagesProcessed,
		m.PackagesFailed,
		m.WorkerRunDuration,
		m.ScrapeRequests,
		m.SearchQueries,
	)
}
