// Package observability provides the metrics and tracing backends used by the
// registry workflows.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sampleregistry"

// PrometheusRecorder publishes workflow metrics through a prometheus
// registry: per-operation outcome counters and latency histograms, records
// processed and validation failures.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	records    *prometheus.CounterVec
	violations prometheus.Counter
}

// NewPrometheusRecorder registers the workflow collectors on a fresh registry.
func NewPrometheusRecorder() (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Workflow operations by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Workflow operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Mapping records read or written by workflow operations.",
		}, []string{"operation"}),
		violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Mapping records rejected by validation.",
		}),
	}
	for _, c := range []prometheus.Collector{r.operations, r.duration, r.records, r.violations} {
		if err := r.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Gatherer exposes the underlying registry for scraping or export.
func (r *PrometheusRecorder) Gatherer() prometheus.Gatherer { return r.registry }

// Observe records an operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordsProcessed adds n to the operation's record counter.
func (r *PrometheusRecorder) RecordsProcessed(_ context.Context, operation string, n int) {
	if n > 0 {
		r.records.WithLabelValues(operation).Add(float64(n))
	}
}

// ValidationFailures adds n rejected records.
func (r *PrometheusRecorder) ValidationFailures(_ context.Context, n int) {
	if n > 0 {
		r.violations.Add(float64(n))
	}
}

// WriteTextfile dumps the current metrics in the node exporter textfile
// format, for one-shot CLI invocations that are never scraped.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
