package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/barbershop/libs/kafkax"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer hands each message to a handler and commits its offset once the
// handler succeeds or the retry budget is spent.
type Consumer struct {
	reader   Reader
	logger   *slog.Logger
	handler  Handler
	attempts int
	backoff  time.Duration
}

type Config struct {
	Attempts int
	Backoff  time.Duration
}

func New(reader Reader, logger *slog.Logger, cfg Config, handler Handler) *Consumer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		reader:   reader,
		logger:   logger,
		handler:  handler,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			if !sleep(ctx, c.backoff) {
				return
			}
			continue
		}

		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit error", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.handler(ctxSpan, msg)
		if err == nil {
			return
		}
		span.RecordError(err)
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "attempt", attempt, "trace_id", otelx.TraceID(ctxSpan))
		if attempt == c.attempts || !sleep(ctx, c.backoff*time.Duration(attempt)) {
			break
		}
	}
	c.logger.Error("event dropped after retries", "event_id", meta.EventID, "event_type", meta.EventType)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
