package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Default stream tuning.
const (
	defaultStreamMaxLen int64 = 100000
	defaultReadBlock          = 100 * time.Millisecond
)

// SignalBus implements domain.SignalBus with Pub/Sub for fan-out and Streams
// for ordered, replayable delivery. Channel and stream names are prefixed
// with the client's key prefix.
type SignalBus struct {
	rdb       *redis.Client
	prefix    string
	maxLen    int64
	readBlock time.Duration
}

// NewSignalBus creates a SignalBus backed by c.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{
		rdb:       c.Underlying(),
		prefix:    c.prefix,
		maxLen:    defaultStreamMaxLen,
		readBlock: defaultReadBlock,
	}
}

// WithStreamMaxLen sets the approximate trim length used by StreamAppend.
// Zero disables trimming.
func (sb *SignalBus) WithStreamMaxLen(n int64) *SignalBus {
	sb.maxLen = n
	return sb
}

// Publish sends payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	ch := prefixed(sb.prefix, channel)
	if err := sb.rdb.Publish(ctx, ch, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", ch, err)
	}
	return nil
}

// Subscribe subscribes to channel, using PSUBSCRIBE when it contains glob
// characters. The returned channel is closed when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := prefixed(sb.prefix, channel)
	var pubsub *redis.PubSub
	if hasPattern(ch) {
		pubsub = sb.rdb.PSubscribe(ctx, ch)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, ch)
	}

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", ch, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// StreamAppend appends payload to a stream with XADD, trimming to roughly
// maxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	key := prefixed(sb.prefix, stream)
	args := &redis.XAddArgs{
		Stream: key,
		Values: map[string]any{"payload": payload},
	}
	if sb.maxLen > 0 {
		args.MaxLen = sb.maxLen
		args.Approx = true
	}
	if err := sb.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", key, err)
	}
	return nil
}

// StreamRead reads up to count entries after lastID, waiting at most the read
// block for new ones. "0" reads from the beginning. An empty result is not an
// error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	key := prefixed(sb.prefix, stream)
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{key, lastID},
		Count:   int64(count),
		Block:   sb.readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", key, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			data, ok := payloadBytes(msg.Values["payload"])
			if !ok {
				continue
			}
			messages = append(messages, domain.StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return messages, nil
}

// payloadBytes converts an XREAD field value. Entries without a payload field
// are skipped by the caller.
func payloadBytes(v any) ([]byte, bool) {
	switch p := v.(type) {
	case string:
		return []byte(p), true
	case []byte:
		return p, true
	default:
		return nil, false
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
