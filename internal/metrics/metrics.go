// Package metrics provides Prometheus metrics for the server and worker.
package metrics

import (
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cidoc"

var (
	// RunsTotal tracks extraction runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "runs_total",
			Help:      "Total number of extraction runs by status",
		},
		[]string{"source", "status"},
	)

	// RunDuration tracks extraction run duration in seconds.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "run_duration_seconds",
			Help:      "Duration of extraction runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	// ResolvedTotal counts resolved entities, relationships and dropped
	// relationships.
	ResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolve",
			Name:      "items_total",
			Help:      "Total number of resolved items by kind",
		},
		[]string{"kind"},
	)

	// DLQJobsTotal tracks jobs sent to the dead letter queue.
	DLQJobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dlq_jobs_total",
			Help:      "Total number of jobs sent to the dead letter queue",
		},
	)

	// AITokensTotal counts language model tokens by direction.
	AITokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "tokens_total",
			Help:      "Total number of language model tokens",
		},
		[]string{"direction"},
	)
)

// RecordRun records the outcome of one extraction run.
func RecordRun(source string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RunsTotal.WithLabelValues(source, status).Inc()
	RunDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// RecordResult counts the items of a resolved result.
func RecordResult(result *extraction.Result) {
	ResolvedTotal.WithLabelValues("entity").Add(float64(len(result.Entities)))
	ResolvedTotal.WithLabelValues("relationship").Add(float64(len(result.Relationships)))
	ResolvedTotal.WithLabelValues("dropped").Add(float64(len(result.Dropped)))
}

// RecordTokens adds language model usage.
func RecordTokens(input, output int) {
	AITokensTotal.WithLabelValues("input").Add(float64(input))
	AITokensTotal.WithLabelValues("output").Add(float64(output))
}
