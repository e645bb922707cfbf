// Package book implements the two-sided order book used by the pricer. Each
// side keeps an id index plus a price-ordered sequence of order handles;
// orders reduced to zero become ghosts that linger in the sequence until a
// bulk compaction purges them.
//
// A Book has exactly one writer. Callers that expose it to other goroutines
// must provide their own locking.
package book

import (
	"fmt"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Order is one resting order. Price never changes after creation; Size only
// decreases until the order becomes a ghost.
type Order struct {
	Timestamp int64
	ID        domain.OrderID
	Side      domain.Side
	Price     float64
	Size      int64
}

// Active reports whether the order still has shares.
func (o *Order) Active() bool {
	return o.Size > 0
}

// Reduce removes up to amount shares and returns how many were removed.
// Calling it with a non-positive amount or on a ghost is a programming error
// in the owning side book.
func (o *Order) Reduce(amount int64) int64 {
	if amount <= 0 {
		panic(fmt.Sprintf("book: reduce order %s by non-positive amount %d", o.ID, amount))
	}
	if !o.Active() {
		panic(fmt.Sprintf("book: reduce ghost order %s", o.ID))
	}
	removed := min(amount, o.Size)
	o.Size -= removed
	return removed
}
