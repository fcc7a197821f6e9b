// Package obs carries the ambient observability concerns RCE inherits from
// its teacher: OpenTelemetry tracing (internal/observability/tracing.go's
// Tracer wrapper, trimmed to the global in-process TracerProvider since RCE
// does not ship an OTLP exporter) and a thin helper for turning a turn
// boundary into a span.
package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an otel Tracer, matching the teacher's
// internal/observability.Tracer's Start/RecordError shape.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer registers an in-process TracerProvider (no exporter — spans are
// sampled and propagated but not shipped anywhere, since RCE's core has no
// place to configure a collector endpoint) and returns a Tracer bound to
// name.
func NewTracer(name string) *Tracer {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(provider)
	return &Tracer{tracer: provider.Tracer(name)}
}

// Start begins a span named name, mirroring the teacher's Tracer.Start.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks it failed, a no-op if err is nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
