package book

import (
	"fmt"
	"slices"
	"sort"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Direction selects which end of the price-ordered sequence is favorable.
type Direction int

const (
	// FavorHighPrice walks bids from the highest price down.
	FavorHighPrice Direction = iota
	// FavorLowPrice walks asks from the lowest price up.
	FavorLowPrice
)

// DirectionFor returns the traversal direction used by the given side.
func DirectionFor(side domain.Side) Direction {
	if side == domain.SideSell {
		return FavorLowPrice
	}
	return FavorHighPrice
}

// IncomeTolerance is the smallest change in income that produces a new report.
const IncomeTolerance = 0.005

type reportState uint8

const (
	neverReported reportState = iota
	reportedUnavailable
	reportedIncome
)

// handle indexes SideBook.orders. Handles of ghosts are only recycled after
// compaction has removed them from the sequence.
type handle int32

// SideBook is one side of the book.
type SideBook struct {
	side domain.Side
	dir  Direction

	orders []Order
	free   []handle
	index  map[domain.OrderID]handle
	// seq holds handles in ascending price order, ghosts included. Equal
	// prices keep arrival order.
	seq []handle

	ghosts   int
	total    int64
	lastSeen int64

	state      reportState
	lastIncome float64
}

// NewSideBook creates an empty side. The traversal direction follows the side.
func NewSideBook(side domain.Side) *SideBook {
	return &SideBook{
		side:  side,
		dir:   DirectionFor(side),
		index: make(map[domain.OrderID]handle),
	}
}

// Side returns the side this book holds.
func (sb *SideBook) Side() domain.Side { return sb.side }

// Contains reports whether id is an active order on this side.
func (sb *SideBook) Contains(id domain.OrderID) bool {
	_, ok := sb.index[id]
	return ok
}

// Order returns a copy of the active order with the given id.
func (sb *SideBook) Order(id domain.OrderID) (Order, bool) {
	h, ok := sb.index[id]
	if !ok {
		return Order{}, false
	}
	return sb.orders[h], true
}

// Len returns the number of active orders.
func (sb *SideBook) Len() int { return len(sb.index) }

// SequenceLen returns the physical length of the price sequence, ghosts
// included.
func (sb *SideBook) SequenceLen() int { return len(sb.seq) }

// Ghosts returns the number of ghost references still in the sequence.
func (sb *SideBook) Ghosts() int { return sb.ghosts }

// TotalShares returns the sum of sizes over all active orders.
func (sb *SideBook) TotalShares() int64 { return sb.total }

// LastSeen returns the timestamp of the most recent mutation.
func (sb *SideBook) LastSeen() int64 { return sb.lastSeen }

// AddOrder inserts a new order. Price and size must be positive.
func (sb *SideBook) AddOrder(ts int64, id domain.OrderID, price float64, size int64) error {
	if !(price > 0) {
		return domain.NewEventError(domain.ErrInvalidPrice, ts, fmt.Sprintf("invalid price %g", price))
	}
	if size <= 0 {
		return domain.NewEventError(domain.ErrInvalidSize, ts, fmt.Sprintf("invalid size %d", size))
	}
	if _, ok := sb.index[id]; ok {
		return duplicateError(ts, id)
	}

	h := sb.alloc(Order{Timestamp: ts, ID: id, Side: sb.side, Price: price, Size: size})
	sb.index[id] = h
	sb.insertSorted(h)

	sb.total += size
	sb.lastSeen = ts
	return nil
}

// ReduceOrder removes up to amount shares from the order and returns how many
// were actually removed. An order reduced to zero leaves the index at once
// and stays in the sequence as a ghost until compaction.
func (sb *SideBook) ReduceOrder(ts int64, id domain.OrderID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.NewEventError(domain.ErrInvalidSize, ts, fmt.Sprintf("invalid size %d", amount))
	}
	h, ok := sb.index[id]
	if !ok {
		return 0, unknownError(ts, id)
	}

	o := &sb.orders[h]
	removed := o.Reduce(amount)
	if !o.Active() {
		delete(sb.index, id)
		sb.ghosts++
	}
	sb.total -= removed
	sb.lastSeen = ts

	if sb.ghosts*4 > len(sb.seq)*3 {
		sb.compact()
	}
	return removed, nil
}

// Income walks the sequence from the favorable end and returns the income of
// filling target shares. ok is false when the side holds fewer shares than
// target. It does not touch the report state.
func (sb *SideBook) Income(target int64) (income float64, ok bool) {
	if sb.total < target {
		return 0, false
	}
	remaining := target
	sb.walk(func(o *Order) bool {
		taken := min(remaining, o.Size)
		income += o.Price * float64(taken)
		remaining -= taken
		return remaining > 0
	})
	return income, true
}

// Quote is the outcome of an income evaluation.
type Quote struct {
	Available bool
	Income    float64
}

// EvaluateIncome computes the income for target shares and decides whether it
// should be reported. Unavailability is reported once on the transition away
// from a reported income; incomes are reported when nothing was reported
// before, after unavailability, or when they moved by at least
// IncomeTolerance.
func (sb *SideBook) EvaluateIncome(target int64) (Quote, bool) {
	income, ok := sb.Income(target)
	if !ok {
		if sb.state != reportedIncome {
			return Quote{}, false
		}
		sb.state = reportedUnavailable
		return Quote{}, true
	}

	if sb.state == reportedIncome && abs(income-sb.lastIncome) < IncomeTolerance {
		return Quote{Available: true, Income: income}, false
	}
	sb.state = reportedIncome
	sb.lastIncome = income
	return Quote{Available: true, Income: income}, true
}

// Depth aggregates up to levels price levels from the favorable end. A
// non-positive levels returns every level.
func (sb *SideBook) Depth(levels int) []domain.DepthLevel {
	var out []domain.DepthLevel
	sb.walk(func(o *Order) bool {
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			out[n-1].Shares += o.Size
			out[n-1].Orders++
			return true
		}
		if levels > 0 && len(out) == levels {
			return false
		}
		out = append(out, domain.DepthLevel{Price: o.Price, Shares: o.Size, Orders: 1})
		return true
	})
	return out
}

// Best returns the active order at the favorable end.
func (sb *SideBook) Best() (Order, bool) {
	var best Order
	found := false
	sb.walk(func(o *Order) bool {
		best, found = *o, true
		return false
	})
	return best, found
}

// walk visits active orders from the favorable end until fn returns false.
func (sb *SideBook) walk(fn func(o *Order) bool) {
	if sb.dir == FavorHighPrice {
		for i := len(sb.seq) - 1; i >= 0; i-- {
			o := &sb.orders[sb.seq[i]]
			if o.Active() && !fn(o) {
				return
			}
		}
		return
	}
	for _, h := range sb.seq {
		o := &sb.orders[h]
		if o.Active() && !fn(o) {
			return
		}
	}
}

// insertSorted places h after every entry whose price is <= its own. Prices
// are immutable, so the whole sequence, ghosts included, stays sorted and a
// binary search finds the same slot as a forward scan over active entries.
func (sb *SideBook) insertSorted(h handle) {
	price := sb.orders[h].Price
	n := len(sb.seq)
	if n == 0 || sb.orders[sb.seq[n-1]].Price <= price {
		sb.seq = append(sb.seq, h)
		return
	}
	at := sort.Search(n, func(i int) bool {
		return sb.orders[sb.seq[i]].Price > price
	})
	sb.seq = slices.Insert(sb.seq, at, h)
}

// compact drops every ghost from the sequence and recycles their slots.
func (sb *SideBook) compact() {
	kept := sb.seq[:0]
	for _, h := range sb.seq {
		if sb.orders[h].Active() {
			kept = append(kept, h)
			continue
		}
		sb.orders[h] = Order{}
		sb.free = append(sb.free, h)
	}
	clear(sb.seq[len(kept):])
	sb.seq = kept
	sb.ghosts = 0
}

func (sb *SideBook) alloc(o Order) handle {
	if n := len(sb.free); n > 0 {
		h := sb.free[n-1]
		sb.free = sb.free[:n-1]
		sb.orders[h] = o
		return h
	}
	sb.orders = append(sb.orders, o)
	return handle(len(sb.orders) - 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func duplicateError(ts int64, id domain.OrderID) error {
	return domain.NewEventError(domain.ErrDuplicateOrderID, ts,
		fmt.Sprintf("can't add order'%s' (order with the id already exists in the book)", id))
}

func unknownError(ts int64, id domain.OrderID) error {
	return domain.NewEventError(domain.ErrUnknownOrderID, ts,
		fmt.Sprintf("can't reduce order'%s' (no order id in the book)", id))
}
