package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"phenocli/internal/infrastructure"
)

// StepTracer provides OpenTelemetry instrumentation for pipeline steps
type StepTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewStepTracer creates a step tracer. metrics may be nil.
func NewStepTracer(metrics *infrastructure.PipelineMetrics) *StepTracer {
	return &StepTracer{
		tracer:  infrastructure.Tracer(),
		metrics: metrics,
	}
}

// TraceOperation creates a span for the whole run
func (t *StepTracer) TraceOperation(ctx context.Context, operationID string, steps int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.Int("operation.steps", steps),
		),
	)
}

// TraceStep creates a span for an individual step
func (t *StepTracer) TraceStep(ctx context.Context, operationID string, step Step) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
}

// EndStep records the outcome and duration of a step and ends its span
func (t *StepTracer) EndStep(ctx context.Context, span trace.Span, step Step, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))

	if t.metrics != nil && t.metrics.StepDuration != nil {
		t.metrics.StepDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("step", step.ID()),
				attribute.String("status", status),
			),
		)
	}
	span.End()
}
