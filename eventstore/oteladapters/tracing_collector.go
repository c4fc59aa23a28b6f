package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventfold/eventstore-go/eventstore"
)

// TracingCollector implements eventstore.TracingCollector on the
// OpenTelemetry tracing API, creating a span per event store operation.
type TracingCollector struct {
	tracer trace.Tracer
}

var _ eventstore.TracingCollector = (*TracingCollector)(nil)

// NewTracingCollector creates a tracing collector on the given tracer, which
// should come from the application's OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span with the given name and attributes and returns the
// span-carrying context together with a SpanContext wrapper.
func (t *TracingCollector) StartSpan(
	ctx context.Context, name string, attrs map[string]string,
) (context.Context, eventstore.SpanContext) {

	options := make([]trace.SpanStartOption, 0, len(attrs))
	for key, value := range attrs {
		options = append(options, trace.WithAttributes(attribute.String(key, value)))
	}

	spanCtx, span := t.tracer.Start(ctx, name, options...)

	return spanCtx, &spanContext{span: span}
}

// FinishSpan sets the final status and attributes and ends the span. Span
// contexts not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(sc eventstore.SpanContext, status string, attrs map[string]string) {
	wrapped, ok := sc.(*spanContext)
	if !ok {
		return
	}

	for key, value := range attrs {
		wrapped.span.SetAttributes(attribute.String(key, value))
	}

	wrapped.SetStatus(status)
	wrapped.span.End()
}

// spanContext wraps an OpenTelemetry span behind eventstore.SpanContext.
type spanContext struct {
	span trace.Span
}

var _ eventstore.SpanContext = (*spanContext)(nil)

// SetStatus maps the engines' status strings onto OpenTelemetry status
// codes; unknown statuses become a span attribute instead.
func (s *spanContext) SetStatus(status string) {
	switch status {
	case "ok", "success", "completed":
		s.span.SetStatus(codes.Ok, "")
	case "error", "failed", "failure":
		s.span.SetStatus(codes.Error, "operation failed")
	case "cancelled", "canceled":
		s.span.SetStatus(codes.Error, "operation cancelled")
	case "timeout":
		s.span.SetStatus(codes.Error, "operation timed out")
	case "conflict":
		s.span.SetStatus(codes.Error, "concurrency conflict")
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *spanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}
