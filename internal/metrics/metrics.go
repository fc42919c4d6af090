package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the tracker's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ats_tracker",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ats_tracker",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "path"},
	)

	ApplicationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ats_tracker",
			Name:      "applications_created_total",
			Help:      "Applications successfully inserted.",
		},
	)

	GoalIncrementFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ats_tracker",
			Name:      "goal_increment_failures_total",
			Help:      "Daily goal increments that failed after the application was saved.",
		},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ats_tracker",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Calls to the generative language model by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		ApplicationsCreated,
		GoalIncrementFailures,
		LLMRequests,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
