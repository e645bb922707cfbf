package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// OpenOptions carries what Open may need besides the input location.
type OpenOptions struct {
	Format Format
	Stdin  io.Reader
	// Blobs resolves s3://bucket/key inputs; Bucket must match the bucket
	// in the URI.
	Blobs  domain.BlobReader
	Bucket string
	// Bus resolves redis://stream inputs.
	Bus    domain.SignalBus
	Kafka  KafkaConfig
	Logger *slog.Logger
}

// Open resolves an input location to an EventSource:
//
//	"" or "-"            standard input
//	s3://bucket/key      object storage
//	kafka://topic        Kafka topic (brokers from options)
//	redis://stream       Redis stream
//	anything else        local file path
func Open(ctx context.Context, input string, opts OpenOptions) (EventSource, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case input == "" || input == "-":
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		return newReaderSource(io.NopCloser(in), opts.Format), nil

	case strings.HasPrefix(input, "s3://"):
		if opts.Blobs == nil {
			return nil, fmt.Errorf("feed: %s: object storage is not configured", input)
		}
		u, err := url.Parse(input)
		if err != nil {
			return nil, fmt.Errorf("feed: parse %s: %w", input, err)
		}
		if opts.Bucket != "" && u.Host != opts.Bucket {
			return nil, fmt.Errorf("feed: %s: bucket %q is not the configured bucket %q", input, u.Host, opts.Bucket)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if key == "" {
			return nil, fmt.Errorf("feed: %s: missing object key", input)
		}
		rc, err := opts.Blobs.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("feed: open %s: %w", input, err)
		}
		return newReaderSource(rc, opts.Format), nil

	case strings.HasPrefix(input, "kafka://"):
		kc := opts.Kafka
		kc.Topic = strings.TrimPrefix(input, "kafka://")
		return NewKafkaSource(kc, opts.Format, logger)

	case strings.HasPrefix(input, "redis://"):
		if opts.Bus == nil {
			return nil, fmt.Errorf("feed: %s: redis is not configured", input)
		}
		stream := strings.TrimPrefix(input, "redis://")
		if stream == "" {
			return nil, fmt.Errorf("feed: %s: missing stream name", input)
		}
		return NewStreamSource(opts.Bus, stream, opts.Format, logger), nil

	default:
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("feed: open %s: %w", input, err)
		}
		return newReaderSource(f, opts.Format), nil
	}
}

// Live reports whether input names a broker or stream source, which waits for
// new events rather than ending at the end of its data.
func Live(input string) bool {
	return strings.HasPrefix(input, "kafka://") || strings.HasPrefix(input, "redis://")
}

func newReaderSource(rc io.ReadCloser, format Format) EventSource {
	if format == FormatBinary {
		return NewBinarySource(rc)
	}
	return NewTextSource(rc)
}
