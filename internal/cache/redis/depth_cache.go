package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

//go:embed scripts/depth_set.lua
var depthSetLua string

// DepthCache implements domain.DepthCache. Each instrument's snapshot is a
// JSON document at "depth:{instrument}" guarded by "depth:{instrument}:ts" so
// a late writer cannot roll the snapshot back in stream time.
type DepthCache struct {
	rdb      *redis.Client
	prefix   string
	depthSet *redis.Script
}

// NewDepthCache creates a DepthCache backed by c.
func NewDepthCache(c *Client) *DepthCache {
	return &DepthCache{
		rdb:      c.Underlying(),
		prefix:   c.prefix,
		depthSet: redis.NewScript(depthSetLua),
	}
}

func depthKey(prefix, instrument string) string   { return prefixed(prefix, "depth:"+instrument) }
func depthTSKey(prefix, instrument string) string { return prefixed(prefix, "depth:"+instrument+":ts") }

// SetDepth stores snap unless a newer snapshot is already cached.
func (dc *DepthCache) SetDepth(ctx context.Context, snap domain.DepthSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal depth %s: %w", snap.Instrument, err)
	}
	keys := []string{depthKey(dc.prefix, snap.Instrument), depthTSKey(dc.prefix, snap.Instrument)}
	if err := dc.depthSet.Run(ctx, dc.rdb, keys, payload, snap.Timestamp).Err(); err != nil {
		return fmt.Errorf("redis: set depth %s: %w", snap.Instrument, err)
	}
	return nil
}

// GetDepth returns the cached snapshot or domain.ErrNotFound.
func (dc *DepthCache) GetDepth(ctx context.Context, instrument string) (domain.DepthSnapshot, error) {
	raw, err := dc.rdb.Get(ctx, depthKey(dc.prefix, instrument)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.DepthSnapshot{}, domain.ErrNotFound
		}
		return domain.DepthSnapshot{}, fmt.Errorf("redis: get depth %s: %w", instrument, err)
	}
	var snap domain.DepthSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("redis: decode depth %s: %w", instrument, err)
	}
	return snap, nil
}

var _ domain.DepthCache = (*DepthCache)(nil)
