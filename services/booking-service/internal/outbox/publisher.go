package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/barbershop/libs/db"
	"github.com/md-rashed-zaman/barbershop/libs/kafkax"
	otelx "github.com/md-rashed-zaman/barbershop/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	db        db.TxQuerier
	repo      *Repository
	writer    MessageWriter
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(q db.TxQuerier, repo *Repository, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		db:        q,
		repo:      repo,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run polls the outbox until ctx is done. A nil writer disables publishing.
func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch sends one batch and marks it published. Records stay pending
// when the write or the commit fails, so delivery is at least once.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		msg := kafka.Message{
			Topic:   r.EventType,
			Key:     []byte(r.AggregateID),
			Value:   r.Payload,
			Headers: kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType}.Headers(),
		}
		msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
		msgs = append(msgs, msg)
		ids = append(ids, r.ID)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}

	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(records), nil
}
