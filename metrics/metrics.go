package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AttemptsTotal counts upstream model calls by model and outcome.
	AttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "analyzer",
		Name:      "attempts_total",
		Help:      "Total number of model attempts, labeled by model and result (success, upstream_error, parse_error, error).",
	}, []string{"model", "result"})

	// RetriesTotal counts same-candidate retries after a transient failure.
	RetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "analyzer",
		Name:      "retries_total",
		Help:      "Total number of retries of the same candidate after a transient failure.",
	}, []string{"model"})

	// RequestsTotal counts analyze requests by route and result.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nutriscan",
		Subsystem: "http",
		Name:      "analyze_requests_total",
		Help:      "Total number of analyze requests, labeled by route and result.",
	}, []string{"route", "result"})

	// AnalyzeDurationSeconds is the end-to-end time spent in the fallback loop.
	AnalyzeDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nutriscan",
		Subsystem: "analyzer",
		Name:      "duration_seconds",
		Help:      "End-to-end time to analyze one image across all candidates.",
		// Vision calls are slow; keep buckets coarse.
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"route", "result"})
)

// Register registers nutriscan metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AttemptsTotal,
			RetriesTotal,
			RequestsTotal,
			AnalyzeDurationSeconds,
		)
	})
}
