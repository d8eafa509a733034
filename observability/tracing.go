package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/almanac"

// Tracer provides OpenTelemetry tracing for Almanac.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Almanac tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartCycleSpan starts a span covering one full dispatch cycle.
func (t *Tracer) StartCycleSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "almanac.cycle",
		trace.WithAttributes(
			attribute.String("almanac.run_id", runID),
		),
	)
}

// EndCycleSpan ends a cycle span with summary attributes.
func (t *Tracer) EndCycleSpan(span trace.Span, projected, matched, claimed, delivered, failed int64) {
	span.SetAttributes(
		attribute.Int64("almanac.events_projected", projected),
		attribute.Int64("almanac.candidates_matched", matched),
		attribute.Int64("almanac.claimed", claimed),
		attribute.Int64("almanac.delivered", delivered),
		attribute.Int64("almanac.failed", failed),
	)
	span.End()
}

// StartDispatchSpan starts a span for one candidate dispatch.
func (t *Tracer) StartDispatchSpan(ctx context.Context, eventID, userID string, leadWindowDays int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "almanac.dispatch",
		trace.WithAttributes(
			attribute.String("almanac.event_id", eventID),
			attribute.String("almanac.user_id", userID),
			attribute.Int("almanac.lead_window_days", leadWindowDays),
		),
	)
}

// EndDispatchSpan ends a dispatch span with per-status counts.
func (t *Tracer) EndDispatchSpan(span trace.Span, delivered, failed, skipped int) {
	span.SetAttributes(
		attribute.Int("almanac.channels_delivered", delivered),
		attribute.Int("almanac.channels_failed", failed),
		attribute.Int("almanac.channels_skipped", skipped),
	)
	span.End()
}
