package book

import (
	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Book owns the BUY and SELL sides of one instrument and remembers which side
// the last successful event touched.
type Book struct {
	sides [2]*SideBook
	last  domain.Side
}

// New returns an empty book. Until the first event, BUY counts as the last
// touched side.
func New() *Book {
	return &Book{
		sides: [2]*SideBook{
			NewSideBook(domain.SideBuy),
			NewSideBook(domain.SideSell),
		},
		last: domain.SideBuy,
	}
}

// Side returns the side book for s. s must be valid.
func (b *Book) Side(s domain.Side) *SideBook {
	return b.sides[s.Index()]
}

// LastTouched returns the side mutated by the most recent successful event.
func (b *Book) LastTouched() domain.Side { return b.last }

// Contains reports whether id is active on either side.
func (b *Book) Contains(id domain.OrderID) bool {
	return b.sides[0].Contains(id) || b.sides[1].Contains(id)
}

// AddOrder adds an order to the given side. Ids are unique across both sides.
func (b *Book) AddOrder(ts int64, id domain.OrderID, side domain.Side, price float64, size int64) error {
	if !side.Valid() {
		return domain.NewEventError(domain.ErrInvalidSide, ts, "invalid side '"+side.String()+"'")
	}
	if b.Contains(id) {
		return duplicateError(ts, id)
	}
	if err := b.Side(side).AddOrder(ts, id, price, size); err != nil {
		return err
	}
	b.last = side
	return nil
}

// ReduceOrder reduces the order with the given id, looking on BUY first.
func (b *Book) ReduceOrder(ts int64, id domain.OrderID, amount int64) error {
	for _, sb := range b.sides {
		if !sb.Contains(id) {
			continue
		}
		if _, err := sb.ReduceOrder(ts, id, amount); err != nil {
			return err
		}
		b.last = sb.Side()
		return nil
	}
	return unknownError(ts, id)
}

// EvaluateIncome evaluates the last touched side. When the evaluation should
// be reported it returns the report, stamped with that side's last-seen
// timestamp and labelled with the opposite side.
func (b *Book) EvaluateIncome(target int64) (domain.Report, bool) {
	sb := b.Side(b.last)
	q, emit := sb.EvaluateIncome(target)
	if !emit {
		return domain.Report{}, false
	}
	return domain.Report{
		Timestamp: sb.LastSeen(),
		Side:      b.last.Opposite(),
		Available: q.Available,
		Income:    q.Income,
	}, true
}

// Depth returns up to levels aggregated levels of both sides.
func (b *Book) Depth(levels int) (bids, asks []domain.DepthLevel) {
	return b.sides[0].Depth(levels), b.sides[1].Depth(levels)
}
