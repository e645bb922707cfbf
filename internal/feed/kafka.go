package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a topic reader. An empty GroupID reads the single
// Partition from the first offset.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	Partition int
	MaxWait   time.Duration
}

// KafkaSource consumes one event per message. Ordering is only defined within
// a partition, so a pricing run should read a single-partition topic.
// A message with an empty value ends the stream.
type KafkaSource struct {
	reader *kafka.Reader
	format Format
	seq    int64
	logger *slog.Logger
}

// NewKafkaSource creates a reader for cfg.Topic.
func NewKafkaSource(cfg KafkaConfig, format Format, logger *slog.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("feed: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("feed: kafka topic is required")
	}
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  cfg.MaxWait,
	}
	if cfg.GroupID == "" {
		rc.Partition = cfg.Partition
		rc.StartOffset = kafka.FirstOffset
	}
	return &KafkaSource{
		reader: kafka.NewReader(rc),
		format: format,
		logger: logger.With(slog.String("component", "kafka_source"), slog.String("topic", cfg.Topic)),
	}, nil
}

// Next blocks until the next message arrives or ctx is done.
func (s *KafkaSource) Next(ctx context.Context) (Record, error) {
	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("feed: kafka read %s: %w", s.reader.Config().Topic, err)
	}
	if len(msg.Value) == 0 {
		s.logger.DebugContext(ctx, "end of stream marker", slog.Int64("offset", msg.Offset))
		return Record{}, io.EOF
	}
	s.seq++
	return decodeMessage(s.seq, msg.Value, s.format)
}

// Close closes the reader.
func (s *KafkaSource) Close() error {
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("feed: kafka close: %w", err)
	}
	return nil
}

// decodeMessage turns one message payload into a record.
func decodeMessage(seq int64, value []byte, format Format) (Record, error) {
	if format == FormatBinary {
		ev, err := DecodeFrame(value)
		if err != nil {
			return Record{}, fmt.Errorf("feed: message %d: %w", seq, err)
		}
		return Record{Seq: seq, Raw: FormatEvent(ev), Bytes: value, Event: ev}, nil
	}
	line := string(value)
	return Record{Seq: seq, Raw: line, Bytes: value, Event: ParseLine(line)}, nil
}

var _ EventSource = (*KafkaSource)(nil)
