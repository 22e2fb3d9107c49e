package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled {
		t.Fatalf("expected tracing disabled")
	}
	if cfg.SampleRatio != 0.25 || cfg.ServiceVersion != "dev" || cfg.OTLPEndpoint != "collector:4317" || cfg.ServiceName != "booking-service" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("OTEL_SAMPLING_RATIO", "7")
	if got := ConfigFromEnv("x").SampleRatio; got != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", got)
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTraceContextRoundTripWithoutSpan(t *testing.T) {
	ctx := ContextWithTraceContext(context.Background(), "", "")
	if tp, _ := TraceContextStrings(ctx); tp != "" {
		t.Fatalf("expected empty traceparent without a span, got %q", tp)
	}
}

func TestTraceContextResumesRecordedTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	ctx := ContextWithTraceContext(context.Background(), tp, "")
	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected trace id %q", got)
	}
	if got, _ := TraceContextStrings(ctx); got != tp {
		t.Fatalf("traceparent did not round trip: %q", got)
	}
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected no trace id outside a trace")
	}
}
