package jobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kiranshivaraju/resumatch/internal/jobs"

// Job outcomes recorded on resumatch.jobs.processed.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeStale    = "stale"
)

// Telemetry holds the scheduler's metric instruments and tracer.
type Telemetry struct {
	tracer        trace.Tracer
	jobsProcessed metric.Int64Counter
	aiDuration    metric.Float64Histogram
	tickDuration  metric.Float64Histogram
}

// NewTelemetry creates instruments from the given providers.
func NewTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) *Telemetry {
	meter := mp.Meter(instrumentationName)
	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}

	// Instrument creation only fails on invalid options; fall back to bare names.
	var err error

	t.jobsProcessed, err = meter.Int64Counter(
		"resumatch.jobs.processed",
		metric.WithDescription("Analysis jobs that left the pending queue, by outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		t.jobsProcessed, _ = meter.Int64Counter("resumatch.jobs.processed")
	}

	t.aiDuration, err = meter.Float64Histogram(
		"resumatch.ai.duration",
		metric.WithDescription("Duration of AI generation calls in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		t.aiDuration, _ = meter.Float64Histogram("resumatch.ai.duration")
	}

	t.tickDuration, err = meter.Float64Histogram(
		"resumatch.scheduler.tick.duration",
		metric.WithDescription("Duration of one scheduler tick in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		t.tickDuration, _ = meter.Float64Histogram("resumatch.scheduler.tick.duration")
	}

	return t
}

func (t *Telemetry) recordJob(ctx context.Context, outcome string, n int64) {
	t.jobsProcessed.Add(ctx, n, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (t *Telemetry) recordAI(ctx context.Context, provider string, d time.Duration, failed bool) {
	t.aiDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("error", failed),
	))
}

func (t *Telemetry) recordTick(ctx context.Context, d time.Duration) {
	t.tickDuration.Record(ctx, float64(d.Milliseconds()))
}
