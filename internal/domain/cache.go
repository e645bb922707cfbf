package domain

import (
	"context"
	"time"
)

// IncomeCache keeps the latest report per instrument and side.
type IncomeCache interface {
	SetLatest(ctx context.Context, instrument string, r Report) error
	GetLatest(ctx context.Context, instrument string, side Side) (Report, error)
}

// DepthCache keeps the latest aggregated depth per instrument.
type DepthCache interface {
	SetDepth(ctx context.Context, snap DepthSnapshot) error
	GetDepth(ctx context.Context, instrument string) (DepthSnapshot, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// RateLimiter counts requests per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
