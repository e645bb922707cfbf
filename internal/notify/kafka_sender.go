package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSender produces one text report per message, keyed by instrument so
// every report of an instrument lands on the same partition.
type KafkaSender struct {
	writer *kafka.Writer
	buf    []byte
}

// NewKafkaSender creates a synchronous producer for topic.
func NewKafkaSender(brokers []string, topic string) *KafkaSender {
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send writes the report line.
func (k *KafkaSender) Send(ctx context.Context, d Delivery) error {
	k.buf = d.Report.AppendFormat(k.buf[:0])
	value := make([]byte, len(k.buf))
	copy(value, k.buf)
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.Instrument),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("kafka: write report to %s: %w", k.writer.Topic, err)
	}
	return nil
}

// Close closes the producer.
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

// Name returns the sender identifier.
func (k *KafkaSender) Name() string { return "kafka" }
