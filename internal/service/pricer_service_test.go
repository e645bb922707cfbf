package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

type memDepth struct {
	mu    sync.Mutex
	snaps []domain.DepthSnapshot
}

func (m *memDepth) SetDepth(_ context.Context, snap domain.DepthSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return nil
}

func (m *memDepth) GetDepth(context.Context, string) (domain.DepthSnapshot, error) {
	return domain.DepthSnapshot{}, domain.ErrNotFound
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPricerServiceCountsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	depth := &memDepth{}
	svc := NewPricerService("ACME", 100, discard()).WithDepthCache(depth, 2, 5)

	events := []domain.Event{
		{Timestamp: 1, Type: domain.EventAdd, ID: "order1", Side: domain.SideBuy, Price: 10, Size: 100},
		{Timestamp: 2, Type: domain.EventAdd, ID: "order2", Side: domain.SideBuy, Price: 10.5, Size: 100},
		{Timestamp: 3, Type: domain.EventReduce, ID: "order1", Size: 100},
		{Timestamp: 4, Type: domain.EventReduce, ID: "order2", Size: 100},
		{Timestamp: 5, Type: domain.EventReduce, ID: "order2", Size: 100},
		{Timestamp: -1, Type: domain.EventAdd, ID: "x", Side: domain.SideBuy, Price: 1, Size: 1},
		{Timestamp: 7, Type: domain.EventAdd, ID: "ask", Side: domain.SideSell, Price: 11, Size: 40},
	}
	var reports []string
	for _, ev := range events {
		r, ok, err := svc.Process(ctx, ev)
		if err != nil {
			_, isEvent := domain.AsEventError(err)
			require.True(t, isEvent)
			continue
		}
		if ok {
			reports = append(reports, r.Format())
		}
	}
	assert.Equal(t, []string{"1 S 1000.00", "2 S 1050.00", "4 S NA"}, reports)

	snap := svc.Snapshot()
	assert.Equal(t, "ACME", snap.Instrument)
	assert.Equal(t, int64(7), snap.Stats.Events)
	assert.Equal(t, int64(3), snap.Stats.Adds)
	assert.Equal(t, int64(2), snap.Stats.Reduces)
	assert.Equal(t, int64(3), snap.Stats.Reports)
	assert.Equal(t, int64(1), snap.Stats.Unavailable)
	assert.Equal(t, int64(2), snap.Stats.Rejected)
	assert.Equal(t, map[string]int64{"unknown_order_id": 1, "invalid_timestamp": 1}, snap.Stats.RejectKinds)
	assert.Equal(t, int64(7), snap.Stats.LastTimestamp)
	assert.Equal(t, domain.SideSell, snap.LastTouched)
	assert.Equal(t, 0, snap.Buy.Orders)
	assert.Equal(t, int64(40), snap.Sell.Shares)
	require.NotNil(t, snap.Sell.Best)
	assert.Equal(t, 11.0, *snap.Sell.Best)
	require.Len(t, snap.LastReports, 1)
	assert.Equal(t, "4 S NA", snap.LastReports[0].Format())

	// Five accepted events with a depth interval of two.
	require.Len(t, depth.snaps, 2)
	assert.Equal(t, int64(2), depth.snaps[0].Timestamp)
	assert.Equal(t, []domain.DepthLevel{{Price: 10.5, Shares: 100, Orders: 1}, {Price: 10, Shares: 100, Orders: 1}}, depth.snaps[0].Bids)
	assert.Equal(t, int64(4), depth.snaps[1].Timestamp)
	assert.Empty(t, depth.snaps[1].Bids)

	d := svc.Depth(1)
	assert.Equal(t, []domain.DepthLevel{{Price: 11, Shares: 40, Orders: 1}}, d.Asks)
}

func TestPricerServiceSnapshotIsACopy(t *testing.T) {
	svc := NewPricerService("ACME", 1, discard())
	_, _, err := svc.Process(context.Background(), domain.Event{Timestamp: 1, Type: 'Z', ID: "a"})
	require.Error(t, err)

	snap := svc.Snapshot()
	snap.Stats.RejectKinds["unsupported_event_type"] = 99
	assert.Equal(t, int64(1), svc.Snapshot().Stats.RejectKinds["unsupported_event_type"])
}
