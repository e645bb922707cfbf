package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

func TestBookScenarioTargetHundred(t *testing.T) {
	b := New()
	const target = 100

	require.NoError(t, b.AddOrder(1, "order1", domain.SideBuy, 10.00, 100))
	r, ok := b.EvaluateIncome(target)
	require.True(t, ok)
	assert.Equal(t, "1 S 1000.00", r.Format())

	require.NoError(t, b.AddOrder(2, "order2", domain.SideBuy, 10.50, 100))
	r, ok = b.EvaluateIncome(target)
	require.True(t, ok)
	assert.Equal(t, "2 S 1050.00", r.Format())

	require.NoError(t, b.ReduceOrder(3, "order1", 100))
	_, ok = b.EvaluateIncome(target)
	assert.False(t, ok)

	require.NoError(t, b.ReduceOrder(4, "order2", 100))
	r, ok = b.EvaluateIncome(target)
	require.True(t, ok)
	assert.Equal(t, "4 S NA", r.Format())
}

func TestBookIDsUniqueAcrossSides(t *testing.T) {
	b := New()
	require.NoError(t, b.AddOrder(1, "x", domain.SideSell, 5, 1))

	err := b.AddOrder(2, "x", domain.SideBuy, 5, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrderID)
	assert.Equal(t, domain.SideSell, b.LastTouched())
	assert.Equal(t, 0, b.Side(domain.SideBuy).Len())
}

func TestBookReduceRoutesToHoldingSide(t *testing.T) {
	b := New()
	require.NoError(t, b.AddOrder(1, "s", domain.SideSell, 5, 10))
	require.NoError(t, b.AddOrder(2, "b", domain.SideBuy, 4, 10))
	assert.Equal(t, domain.SideBuy, b.LastTouched())

	require.NoError(t, b.ReduceOrder(3, "s", 4))
	assert.Equal(t, domain.SideSell, b.LastTouched())
	assert.Equal(t, int64(6), b.Side(domain.SideSell).TotalShares())

	assert.ErrorIs(t, b.ReduceOrder(4, "nope", 1), domain.ErrUnknownOrderID)
	assert.Equal(t, domain.SideSell, b.LastTouched())
}

func TestBookRejectsInvalidSide(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.AddOrder(1, "a", domain.Side('X'), 1, 1), domain.ErrInvalidSide)
}

func TestBookReportUsesLastSeenOfEvaluatedSide(t *testing.T) {
	b := New()
	require.NoError(t, b.AddOrder(100, "a", domain.SideSell, 2, 1))
	r, ok := b.EvaluateIncome(1)
	require.True(t, ok)
	assert.Equal(t, domain.Report{Timestamp: 100, Side: domain.SideBuy, Available: true, Income: 2}, r)
}
