package otelx

import (
	"context"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/barbershop/libs/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port, e.g. jaeger:4317
	Insecure       bool
	SampleRatio    float64
}

// ConfigFromEnv reads the OTEL_* variables plus SERVICE_VERSION and
// DEPLOY_ENV. Invalid values fall back to defaults.
func ConfigFromEnv(serviceName string) Config {
	enabled, err := config.Bool("OTEL_ENABLED", true)
	if err != nil {
		enabled = true
	}
	insecure, err := config.Bool("OTEL_EXPORTER_OTLP_INSECURE", true)
	if err != nil {
		insecure = true
	}

	sampleRatio := 1.0
	if v := config.String("OTEL_SAMPLING_RATIO", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			sampleRatio = f
		}
	}

	return Config{
		Enabled:        enabled,
		ServiceName:    serviceName,
		ServiceVersion: config.String("SERVICE_VERSION", "dev"),
		Environment:    config.String("DEPLOY_ENV", "local"),
		OTLPEndpoint:   config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
		Insecure:       insecure,
		SampleRatio:    sampleRatio,
	}
}

// Setup installs the W3C propagators and, when enabled, an OTLP tracer
// provider. The returned func flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(3 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
