package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlcopilot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlcopilot_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlcopilot_generation_requests_total",
			Help: "Total number of SQL generation calls by variant and outcome.",
		},
		[]string{"variant", "outcome"},
	)

	generationLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlcopilot_generation_latency_seconds",
			Help:    "Wall time of a single SQL generation call.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
		[]string{"variant"},
	)

	evaluationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlcopilot_evaluation_outcomes_total",
			Help: "Total number of SQL evaluations by outcome kind.",
		},
		[]string{"kind"},
	)

	evaluationLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlcopilot_evaluation_latency_seconds",
			Help:    "Wall time of a single SQL evaluation including session setup.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationRequestsTotal,
		generationLatencySeconds,
		evaluationOutcomesTotal,
		evaluationLatencySeconds,
	)
}

// ObserveGeneration records one generator call. outcome is "ok", "empty" or "error".
func ObserveGeneration(variant, outcome string, elapsed time.Duration) {
	generationRequestsTotal.WithLabelValues(variant, outcome).Inc()
	generationLatencySeconds.WithLabelValues(variant).Observe(elapsed.Seconds())
}

func ObserveEvaluation(kind string, elapsed time.Duration) {
	evaluationOutcomesTotal.WithLabelValues(kind).Inc()
	evaluationLatencySeconds.Observe(elapsed.Seconds())
}

// WriteMetricsFile dumps the default registry in the node-exporter textfile
// format. Empty paths are ignored.
func WriteMetricsFile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
