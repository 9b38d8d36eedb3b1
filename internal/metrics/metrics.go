package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPActiveConnections *prometheus.GaugeVec

	// Rate limiting
	RateLimitExceededTotal *prometheus.CounterVec

	// Launch scheduler
	VotesTotal         *prometheus.CounterVec
	BookingsTotal      *prometheus.CounterVec
	FinalizationsTotal *prometheus.CounterVec
	LockWaitDuration   *prometheus.HistogramVec
	LiveSubscribers    prometheus.Gauge

	// Outbound integrations
	EmailsTotal       *prometheus.CounterVec
	SearchIndexTotal  *prometheus.CounterVec
	BackgroundJobRuns *prometheus.CounterVec

	// Search queries
	SearchQueriesTotal  *prometheus.CounterVec
	SearchQueryDuration *prometheus.HistogramVec
	SearchCacheTotal    *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of in-flight HTTP requests",
				},
				[]string{"method", "path"},
			),
			RateLimitExceededTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by the rate limiter",
				},
				[]string{"scope"},
			),
			VotesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "launch_votes_total",
					Help: "Vote mutations by action and result",
				},
				[]string{"action", "result"},
			),
			BookingsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "launch_bookings_total",
					Help: "Launch booking attempts by tier and result",
				},
				[]string{"tier", "result"},
			),
			FinalizationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "launch_finalizations_total",
					Help: "Launch day finalizations by trigger",
				},
				[]string{"trigger"},
			),
			LockWaitDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "launch_lock_wait_seconds",
					Help:    "Time spent waiting for a launch day lock",
					Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
				},
				[]string{"operation"},
			),
			LiveSubscribers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "launch_live_subscribers",
					Help: "Connected live leaderboard websocket clients",
				},
			),
			EmailsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "emails_sent_total",
					Help: "Outbound emails by template and result",
				},
				[]string{"template", "result"},
			),
			SearchIndexTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_index_operations_total",
					Help: "Search index writes by index, operation and result",
				},
				[]string{"index", "operation", "result"},
			),
			BackgroundJobRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "background_job_runs_total",
					Help: "Background job executions by job and result",
				},
				[]string{"job", "result"},
			),
			SearchQueriesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_queries_total",
					Help: "Search queries by backend and result",
				},
				[]string{"backend", "result"},
			),
			SearchQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "search_query_duration_seconds",
					Help:    "Search query duration in seconds",
					Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				},
				[]string{"backend"},
			),
			SearchCacheTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_cache_lookups_total",
					Help: "Search cache lookups by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return instance
}

// Result converts an error into a metrics label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
