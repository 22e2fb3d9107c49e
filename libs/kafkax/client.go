package kafkax

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns a writer that routes by message topic, so one writer can
// serve every event type an outbox emits.
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

// NewReader returns a consumer-group reader over the given topics.
func NewReader(brokers, groupID string, topics ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        SplitBrokers(brokers),
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
}
