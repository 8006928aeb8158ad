// Package metrics exposes Prometheus metrics for the daka service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "daka"

// Custom registry so tests and the service share one set of collectors.
var registry = prometheus.NewRegistry() //nolint:gochecknoglobals

var (
	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Check-in submissions by outcome.",
	}, []string{"outcome"})

	ledgerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "request_duration_seconds",
		Help:      "Ledger JSON-RPC latency by method and result.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "result"})

	streakFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "streak",
		Name:      "update_failures_total",
		Help:      "Streak updates that failed after a recorded check-in.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)

func init() { //nolint:gochecknoinits
	registry.MustRegister(
		submissions,
		ledgerLatency,
		streakFailures,
		httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry returns the service registry.
func Registry() *prometheus.Registry { return registry }

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// IncSubmission counts one check-in outcome.
func IncSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// ObserveLedgerCall records the latency of one ledger request.
func ObserveLedgerCall(method string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ledgerLatency.WithLabelValues(method, result).Observe(d.Seconds())
}

// IncStreakFailure counts one swallowed streak update error.
func IncStreakFailure() {
	streakFailures.Inc()
}

// IncHTTPRequest counts one served request.
func IncHTTPRequest(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}
