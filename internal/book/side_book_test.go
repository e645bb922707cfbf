package book

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

func prices(sb *SideBook) []float64 {
	var out []float64
	for _, h := range sb.seq {
		if o := sb.orders[h]; o.Active() {
			out = append(out, o.Price)
		}
	}
	return out
}

func ids(sb *SideBook) []domain.OrderID {
	var out []domain.OrderID
	for _, h := range sb.seq {
		if o := sb.orders[h]; o.Active() {
			out = append(out, o.ID)
		}
	}
	return out
}

func TestSideBookInsertKeepsPriceAndArrivalOrder(t *testing.T) {
	sb := NewSideBook(domain.SideSell)
	require.NoError(t, sb.AddOrder(1, "c", 44.30, 10))
	require.NoError(t, sb.AddOrder(2, "a", 44.10, 10))
	require.NoError(t, sb.AddOrder(3, "d", 44.30, 10))
	require.NoError(t, sb.AddOrder(4, "b", 44.20, 10))
	require.NoError(t, sb.AddOrder(5, "e", 44.10, 10))

	assert.Equal(t, []float64{44.10, 44.10, 44.20, 44.30, 44.30}, prices(sb))
	assert.Equal(t, []domain.OrderID{"a", "e", "b", "c", "d"}, ids(sb))
	assert.Equal(t, int64(50), sb.TotalShares())
	assert.Equal(t, int64(5), sb.LastSeen())
}

func TestSideBookInsertAmongGhosts(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)
	for i, id := range []domain.OrderID{"a", "b", "c", "d", "e", "f", "g", "h"} {
		require.NoError(t, sb.AddOrder(int64(i), id, float64(10+i), 1))
	}
	// Ghost three of eight: below the compaction threshold.
	for _, id := range []domain.OrderID{"b", "d", "f"} {
		_, err := sb.ReduceOrder(20, id, 1)
		require.NoError(t, err)
	}
	require.Equal(t, 3, sb.Ghosts())
	require.Equal(t, 8, sb.SequenceLen())

	require.NoError(t, sb.AddOrder(30, "x", 13.5, 1))
	require.NoError(t, sb.AddOrder(31, "y", 11, 1))

	assert.Equal(t, []domain.OrderID{"a", "y", "c", "x", "e", "g", "h"}, ids(sb))
}

func TestSideBookDuplicateAndUnknown(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)
	require.NoError(t, sb.AddOrder(1, "a", 10, 5))

	err := sb.AddOrder(2, "a", 11, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateOrderID))
	assert.Equal(t, "at 2 ms can't add order'a' (order with the id already exists in the book)", err.Error())

	_, err = sb.ReduceOrder(3, "zz", 1)
	assert.True(t, errors.Is(err, domain.ErrUnknownOrderID))
	assert.Equal(t, "at 3 ms can't reduce order'zz' (no order id in the book)", err.Error())

	assert.Equal(t, int64(5), sb.TotalShares())
	assert.Equal(t, int64(1), sb.LastSeen())
}

func TestSideBookRejectsBadArguments(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)
	assert.ErrorIs(t, sb.AddOrder(1, "a", 0, 5), domain.ErrInvalidPrice)
	assert.ErrorIs(t, sb.AddOrder(1, "a", 1, 0), domain.ErrInvalidSize)

	require.NoError(t, sb.AddOrder(1, "a", 1, 5))
	_, err := sb.ReduceOrder(2, "a", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidSize)
}

func TestSideBookReduceToGhostOnce(t *testing.T) {
	sb := NewSideBook(domain.SideSell)
	require.NoError(t, sb.AddOrder(1, "a", 10, 5))
	require.NoError(t, sb.AddOrder(1, "b", 11, 5))
	require.NoError(t, sb.AddOrder(1, "c", 12, 5))
	require.NoError(t, sb.AddOrder(1, "d", 13, 5))

	removed, err := sb.ReduceOrder(2, "a", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)
	assert.False(t, sb.Contains("a"))
	assert.Equal(t, 1, sb.Ghosts())
	assert.Equal(t, int64(15), sb.TotalShares())

	_, err = sb.ReduceOrder(3, "a", 1)
	assert.ErrorIs(t, err, domain.ErrUnknownOrderID)
	assert.Equal(t, 1, sb.Ghosts())
}

func TestSideBookCompaction(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)
	for i, id := range []domain.OrderID{"a", "b", "c", "d"} {
		require.NoError(t, sb.AddOrder(int64(i), id, float64(10+i), 1))
	}
	for _, id := range []domain.OrderID{"a", "b", "c"} {
		_, err := sb.ReduceOrder(9, id, 1)
		require.NoError(t, err)
	}
	// 3 ghosts of 4 is exactly 75%: not yet compacted.
	assert.Equal(t, 3, sb.Ghosts())
	assert.Equal(t, 4, sb.SequenceLen())

	_, err := sb.ReduceOrder(10, "d", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, sb.Ghosts())
	assert.Equal(t, 0, sb.SequenceLen())
	assert.Len(t, sb.free, 4)

	// Recycled slots come back without disturbing order.
	require.NoError(t, sb.AddOrder(11, "e", 5, 1))
	require.NoError(t, sb.AddOrder(12, "f", 4, 1))
	assert.Equal(t, []domain.OrderID{"f", "e"}, ids(sb))
	assert.Len(t, sb.orders, 4)
}

func TestSideBookIncomeDirection(t *testing.T) {
	add := func(sb *SideBook) {
		require.NoError(t, sb.AddOrder(1, "a", 10.00, 50))
		require.NoError(t, sb.AddOrder(2, "b", 10.50, 50))
		require.NoError(t, sb.AddOrder(3, "c", 11.00, 50))
	}

	buy := NewSideBook(domain.SideBuy)
	add(buy)
	income, ok := buy.Income(75)
	require.True(t, ok)
	assert.InDelta(t, 11.00*50+10.50*25, income, 1e-9)

	sell := NewSideBook(domain.SideSell)
	add(sell)
	income, ok = sell.Income(75)
	require.True(t, ok)
	assert.InDelta(t, 10.00*50+10.50*25, income, 1e-9)

	_, ok = sell.Income(151)
	assert.False(t, ok)
}

func TestSideBookEvaluateIncomeStates(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)

	// Never reported and unavailable: silent.
	_, emit := sb.EvaluateIncome(10)
	assert.False(t, emit)

	require.NoError(t, sb.AddOrder(1, "a", 2.000, 10))
	q, emit := sb.EvaluateIncome(10)
	require.True(t, emit)
	assert.Equal(t, Quote{Available: true, Income: 20}, q)

	// Moves by less than the tolerance: suppressed.
	require.NoError(t, sb.AddOrder(2, "b", 2.0004, 10))
	_, emit = sb.EvaluateIncome(10)
	assert.False(t, emit)

	// Moves by the tolerance or more: reported.
	require.NoError(t, sb.AddOrder(3, "c", 2.001, 10))
	q, emit = sb.EvaluateIncome(10)
	require.True(t, emit)
	assert.InDelta(t, 20.01, q.Income, 1e-9)

	// Losing liquidity is reported once.
	for _, id := range []domain.OrderID{"a", "b", "c"} {
		_, err := sb.ReduceOrder(4, id, 10)
		require.NoError(t, err)
	}
	q, emit = sb.EvaluateIncome(10)
	require.True(t, emit)
	assert.False(t, q.Available)
	_, emit = sb.EvaluateIncome(10)
	assert.False(t, emit)

	// The same income as before unavailability is reported again.
	require.NoError(t, sb.AddOrder(5, "d", 2.001, 10))
	q, emit = sb.EvaluateIncome(10)
	require.True(t, emit)
	assert.InDelta(t, 20.01, q.Income, 1e-9)
}

func TestSideBookDepthAndBest(t *testing.T) {
	sb := NewSideBook(domain.SideBuy)
	require.NoError(t, sb.AddOrder(1, "a", 10, 5))
	require.NoError(t, sb.AddOrder(2, "b", 11, 7))
	require.NoError(t, sb.AddOrder(3, "c", 11, 3))
	require.NoError(t, sb.AddOrder(4, "d", 9, 1))
	_, err := sb.ReduceOrder(5, "d", 1)
	require.NoError(t, err)

	assert.Equal(t, []domain.DepthLevel{
		{Price: 11, Shares: 10, Orders: 2},
		{Price: 10, Shares: 5, Orders: 1},
	}, sb.Depth(0))
	assert.Len(t, sb.Depth(1), 1)

	best, ok := sb.Best()
	require.True(t, ok)
	assert.Equal(t, domain.OrderID("c"), best.ID)
}
