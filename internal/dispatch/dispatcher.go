// Package dispatch validates decoded events and routes them into a book.
package dispatch

import (
	"fmt"
	"math"
	"strconv"

	"github.com/alanyoungcy/bookpricer/internal/book"
	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Dispatcher applies events to a single book.
type Dispatcher struct {
	book *book.Book
}

// New returns a Dispatcher for b.
func New(b *book.Book) *Dispatcher {
	return &Dispatcher{book: b}
}

// Book returns the underlying book.
func (d *Dispatcher) Book() *book.Book { return d.book }

// Validate checks the event fields in a fixed order: timestamp, id, then the
// type-specific fields, and finally the type itself. The returned error is a
// *domain.EventError.
func Validate(ev domain.Event) error {
	if ev.Timestamp < 0 {
		return domain.NewEventError(domain.ErrInvalidTimestamp, ev.Timestamp, "")
	}
	if !ev.ID.Valid() {
		return domain.NewEventError(domain.ErrInvalidOrderID, ev.Timestamp,
			fmt.Sprintf("invalid order id '%s'", ev.ID))
	}

	switch ev.Type {
	case domain.EventAdd:
		if !ev.Side.Valid() {
			return domain.NewEventError(domain.ErrInvalidSide, ev.Timestamp,
				fmt.Sprintf("invalid side '%s'", ev.Side))
		}
		if !(ev.Price > 0) || math.IsInf(ev.Price, 0) {
			return domain.NewEventError(domain.ErrInvalidPrice, ev.Timestamp,
				"invalid price "+strconv.FormatFloat(ev.Price, 'g', -1, 64))
		}
		if !validSize(ev.Size) {
			return invalidSize(ev)
		}
	case domain.EventReduce:
		if !validSize(ev.Size) {
			return invalidSize(ev)
		}
	default:
		return domain.NewEventError(domain.ErrUnsupportedEventType, ev.Timestamp,
			fmt.Sprintf("unsupported message type '%s'", ev.Type))
	}
	return nil
}

// validSize bounds sizes to the 32-bit range the binary frame carries, which
// also keeps side totals from overflowing.
func validSize(n int64) bool {
	return n > 0 && n <= math.MaxInt32
}

// Apply validates ev and forwards it to the book. Failures leave the book
// untouched.
func (d *Dispatcher) Apply(ev domain.Event) error {
	if err := Validate(ev); err != nil {
		return err
	}
	if ev.Type == domain.EventAdd {
		return d.book.AddOrder(ev.Timestamp, ev.ID, ev.Side, ev.Price, ev.Size)
	}
	return d.book.ReduceOrder(ev.Timestamp, ev.ID, ev.Size)
}

// Process applies ev and, when it succeeds, evaluates income for target on
// the side the event touched. A rejected event never produces a report.
func (d *Dispatcher) Process(ev domain.Event, target int64) (domain.Report, bool, error) {
	if err := d.Apply(ev); err != nil {
		return domain.Report{}, false, err
	}
	r, ok := d.book.EvaluateIncome(target)
	return r, ok, nil
}

func invalidSize(ev domain.Event) error {
	return domain.NewEventError(domain.ErrInvalidSize, ev.Timestamp,
		fmt.Sprintf("invalid size %d", ev.Size))
}
