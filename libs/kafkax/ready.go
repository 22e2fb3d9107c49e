package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReadyCheck dials the configured brokers until one answers. When topics are
// given it also requires each of them to exist.
func ReadyCheck(brokers string, topics ...string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		var errs []error
		for _, addr := range list {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			err = checkTopics(conn, topics)
			_ = conn.Close()
			return err
		}
		return errors.Join(errs...)
	}
}

func checkTopics(conn *kafka.Conn, topics []string) error {
	if len(topics) == 0 {
		return nil
	}
	partitions, err := conn.ReadPartitions(topics...)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(topics))
	for _, p := range partitions {
		found[p.Topic] = true
	}
	for _, t := range topics {
		if !found[t] {
			return fmt.Errorf("topic %s missing", t)
		}
	}
	return nil
}
