package feed

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// StreamSource replays a durable bus stream (a Redis stream in production)
// from a cursor. Stream entries are totally ordered, so unlike pub/sub nothing
// is dropped when the pricer falls behind.
type StreamSource struct {
	bus    domain.SignalBus
	stream string
	format Format
	cursor string
	batch  int
	poll   time.Duration

	pending []domain.StreamMessage
	seq     int64
	logger  *slog.Logger
}

// NewStreamSource reads stream from the beginning in batches of batch entries.
func NewStreamSource(bus domain.SignalBus, stream string, format Format, logger *slog.Logger) *StreamSource {
	return &StreamSource{
		bus:    bus,
		stream: stream,
		format: format,
		cursor: "0",
		batch:  512,
		poll:   200 * time.Millisecond,
		logger: logger.With(slog.String("component", "stream_source"), slog.String("stream", stream)),
	}
}

// Next returns the next entry, polling until one is appended. An entry with
// an empty payload ends the stream.
func (s *StreamSource) Next(ctx context.Context) (Record, error) {
	for len(s.pending) == 0 {
		msgs, err := s.bus.StreamRead(ctx, s.stream, s.cursor, s.batch)
		if err != nil {
			return Record{}, err
		}
		if len(msgs) > 0 {
			s.pending = msgs
			break
		}
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-time.After(s.poll):
		}
	}

	msg := s.pending[0]
	s.pending = s.pending[1:]
	s.cursor = msg.ID
	if len(msg.Payload) == 0 {
		s.logger.DebugContext(ctx, "end of stream marker", slog.String("id", msg.ID))
		return Record{}, io.EOF
	}
	s.seq++
	return decodeMessage(s.seq, msg.Payload, s.format)
}

// Cursor returns the id of the last consumed entry.
func (s *StreamSource) Cursor() string { return s.cursor }

// Close is a no-op; the bus is owned by the caller.
func (s *StreamSource) Close() error { return nil }

var _ EventSource = (*StreamSource)(nil)
