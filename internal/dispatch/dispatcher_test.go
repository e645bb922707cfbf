package dispatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/book"
	"github.com/alanyoungcy/bookpricer/internal/domain"
)

func add(ts int64, id string, side domain.Side, price float64, size int64) domain.Event {
	return domain.Event{Timestamp: ts, Type: domain.EventAdd, ID: domain.OrderID(id), Side: side, Price: price, Size: size}
}

func reduce(ts int64, id string, size int64) domain.Event {
	return domain.Event{Timestamp: ts, Type: domain.EventReduce, ID: domain.OrderID(id), Size: size}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name   string
		ev     domain.Event
		kind   error
		detail string
	}{
		{"negative timestamp wins", domain.Event{Timestamp: -1, Type: 'Z', ID: "", Size: -1}, domain.ErrInvalidTimestamp, "at -1 ms invalid timestamp"},
		{"empty id", add(5, "", 'X', 0, 0), domain.ErrInvalidOrderID, "at 5 ms invalid order id ''"},
		{"long id", add(5, "123456789", domain.SideBuy, 1, 1), domain.ErrInvalidOrderID, "at 5 ms invalid order id '123456789'"},
		{"embedded nul", add(5, "a\x00b", domain.SideBuy, 1, 1), domain.ErrInvalidOrderID, "at 5 ms invalid order id 'a\x00b'"},
		{"side before price", add(5, "a", 'X', 0, 0), domain.ErrInvalidSide, "at 5 ms invalid side 'X'"},
		{"price before size", add(5, "a", domain.SideSell, 0, 0), domain.ErrInvalidPrice, "at 5 ms invalid price 0"},
		{"negative price", add(5, "a", domain.SideSell, -1.5, 1), domain.ErrInvalidPrice, "at 5 ms invalid price -1.5"},
		{"add size", add(5, "a", domain.SideSell, 1, 0), domain.ErrInvalidSize, "at 5 ms invalid size 0"},
		{"infinite price", add(5, "a", domain.SideSell, math.Inf(1), 100), domain.ErrInvalidPrice, "at 5 ms invalid price +Inf"},
		{"nan price", add(5, "a", domain.SideSell, math.NaN(), 100), domain.ErrInvalidPrice, "at 5 ms invalid price NaN"},
		{"add size above int32", add(5, "a", domain.SideBuy, 10, math.MaxInt32+1), domain.ErrInvalidSize, "at 5 ms invalid size 2147483648"},
		{"reduce size above int32", reduce(5, "a", 9000000000000000000), domain.ErrInvalidSize, "at 5 ms invalid size 9000000000000000000"},
		{"int32 size is fine", add(5, "a", domain.SideBuy, 10, math.MaxInt32), nil, ""},
		{"reduce size", reduce(5, "a", -3), domain.ErrInvalidSize, "at 5 ms invalid size -3"},
		{"unknown type", domain.Event{Timestamp: 5, Type: 'X', ID: "a", Size: 1}, domain.ErrUnsupportedEventType, "at 5 ms unsupported message type 'X'"},
		{"zero timestamp is fine", add(0, "a", domain.SideBuy, 1, 1), nil, ""},
		{"eight byte id is fine", reduce(1, "12345678", 1), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ev)
			if tt.kind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.detail, err.Error())
		})
	}
}

func TestApplyRejectionsLeaveBookUntouched(t *testing.T) {
	b := book.New()
	d := New(b)
	require.NoError(t, d.Apply(add(1, "a", domain.SideSell, 10, 5)))

	assert.ErrorIs(t, d.Apply(add(2, "a", domain.SideBuy, 10, 5)), domain.ErrDuplicateOrderID)
	assert.ErrorIs(t, d.Apply(reduce(3, "b", 1)), domain.ErrUnknownOrderID)
	assert.ErrorIs(t, d.Apply(add(4, "c", 'Q', 10, 5)), domain.ErrInvalidSide)

	assert.Equal(t, domain.SideSell, b.LastTouched())
	assert.Equal(t, int64(5), b.Side(domain.SideSell).TotalShares())
	assert.Equal(t, int64(1), b.Side(domain.SideSell).LastSeen())
	assert.Equal(t, 0, b.Side(domain.SideBuy).Len())
}

func TestProcessScenario(t *testing.T) {
	d := New(book.New())
	events := []domain.Event{
		add(1, "order1", domain.SideBuy, 10.00, 100),
		add(2, "order2", domain.SideBuy, 10.50, 100),
		reduce(3, "order1", 100),
		reduce(4, "order2", 100),
		reduce(5, "order2", 100),
	}

	var out []string
	var errs []string
	for _, ev := range events {
		r, ok, err := d.Process(ev, 100)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if ok {
			out = append(out, r.Format())
		}
	}
	assert.Equal(t, []string{"1 S 1000.00", "2 S 1050.00", "4 S NA"}, out)
	assert.Equal(t, []string{"at 5 ms can't reduce order'order2' (no order id in the book)"}, errs)
}

func TestProcessKeepsSideTotalsExact(t *testing.T) {
	b := book.New()
	d := New(b)

	r, ok, err := d.Process(add(1, "a", domain.SideBuy, 10, math.MaxInt32), 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1 S 1000.00", r.Format())

	_, ok, err = d.Process(add(2, "b", domain.SideBuy, 10, 9000000000000000000), 100)
	assert.ErrorIs(t, err, domain.ErrInvalidSize)
	assert.False(t, ok)

	_, ok, err = d.Process(add(3, "c", domain.SideBuy, 10, math.MaxInt32), 100)
	require.NoError(t, err)
	assert.False(t, ok, "income unchanged")
	assert.Equal(t, int64(2*math.MaxInt32), b.Side(domain.SideBuy).TotalShares())
}
