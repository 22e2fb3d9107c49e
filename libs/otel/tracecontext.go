package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContextStrings returns the W3C headers of the span in ctx, both
// empty when ctx carries no span. Outbox rows store them next to the event.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[traceparentKey], carrier[tracestateKey]
}

// ContextWithTraceContext resumes the trace recorded by TraceContextStrings.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{traceparentKey: traceparent}
	if tracestate != "" {
		carrier[tracestateKey] = tracestate
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// TraceID is the hex trace id of ctx, or "" outside a sampled trace.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
