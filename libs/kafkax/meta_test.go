package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	msg := kafka.Message{Topic: "booking.created.v1", Key: []byte("evt-1")}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "booking.created.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	msg.Headers = EventMeta{EventID: "evt-2", EventType: "booking.status_changed.v1"}.Headers()
	meta = ExtractEventMeta(msg)
	if meta.EventID != "evt-2" || meta.EventType != "booking.status_changed.v1" {
		t.Fatalf("headers should win: %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka:9092, ,kafka2:9092 ")
	if len(got) != 2 || got[0] != "kafka:9092" || got[1] != "kafka2:9092" {
		t.Fatalf("unexpected brokers: %v", got)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceHeaders(ctx, nil)
	if HeaderValue(headers, "traceparent") == "" {
		t.Fatalf("expected traceparent header")
	}

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id not propagated")
	}
}
