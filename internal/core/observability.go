package core

import (
	"context"
	"time"

	"sampleregistry/internal/observability"
)

// MetricsRecorder receives workflow measurements.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	RecordsProcessed(ctx context.Context, operation string, n int)
	ValidationFailures(ctx context.Context, n int)
}

// Tracer opens a span around each workflow operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, observability.Span)
}

var (
	_ MetricsRecorder = (*observability.PrometheusRecorder)(nil)
	_ Tracer          = (*observability.JSONTracer)(nil)
)

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) RecordsProcessed(context.Context, string, int)        {}
func (noopMetrics) ValidationFailures(context.Context, int)              {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, observability.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
