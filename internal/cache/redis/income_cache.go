package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// IncomeCache implements domain.IncomeCache with one hash per instrument and
// reporting side at "income:{instrument}:{side}" holding the fields
// "available", "income" and "ts".
type IncomeCache struct {
	rdb    *redis.Client
	prefix string
}

// NewIncomeCache creates an IncomeCache backed by c.
func NewIncomeCache(c *Client) *IncomeCache {
	return &IncomeCache{rdb: c.Underlying(), prefix: c.prefix}
}

func incomeKey(prefix, instrument string, side domain.Side) string {
	return prefixed(prefix, "income:"+instrument+":"+side.String())
}

// SetLatest stores r as the latest report of its side.
func (ic *IncomeCache) SetLatest(ctx context.Context, instrument string, r domain.Report) error {
	fields := map[string]any{
		"available": strconv.FormatBool(r.Available),
		"income":    strconv.FormatFloat(r.Income, 'f', -1, 64),
		"ts":        strconv.FormatInt(r.Timestamp, 10),
	}
	if err := ic.rdb.HSet(ctx, incomeKey(ic.prefix, instrument, r.Side), fields).Err(); err != nil {
		return fmt.Errorf("redis: set income %s/%s: %w", instrument, r.Side, err)
	}
	return nil
}

// GetLatest returns the latest report of side. It returns domain.ErrNotFound
// when nothing has been reported yet.
func (ic *IncomeCache) GetLatest(ctx context.Context, instrument string, side domain.Side) (domain.Report, error) {
	vals, err := ic.rdb.HGetAll(ctx, incomeKey(ic.prefix, instrument, side)).Result()
	if err != nil {
		return domain.Report{}, fmt.Errorf("redis: get income %s/%s: %w", instrument, side, err)
	}
	if len(vals) == 0 {
		return domain.Report{}, domain.ErrNotFound
	}
	r, err := parseIncome(vals)
	if err != nil {
		return domain.Report{}, fmt.Errorf("redis: get income %s/%s: %w", instrument, side, err)
	}
	r.Side = side
	return r, nil
}

func parseIncome(vals map[string]string) (domain.Report, error) {
	var r domain.Report
	var err error
	if r.Available, err = strconv.ParseBool(vals["available"]); err != nil {
		return r, fmt.Errorf("parse available: %w", err)
	}
	if r.Income, err = strconv.ParseFloat(vals["income"], 64); err != nil {
		return r, fmt.Errorf("parse income: %w", err)
	}
	if r.Timestamp, err = strconv.ParseInt(vals["ts"], 10, 64); err != nil {
		return r, fmt.Errorf("parse ts: %w", err)
	}
	return r, nil
}

var _ domain.IncomeCache = (*IncomeCache)(nil)
