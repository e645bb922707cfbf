package domain

// EventType tags an event record. Unknown tags are preserved so the
// dispatcher can report them.
type EventType byte

const (
	EventAdd    EventType = 'A'
	EventReduce EventType = 'R'
)

func (t EventType) String() string {
	if t == 0 {
		return ""
	}
	return string([]byte{byte(t)})
}

// Event is one decoded order-book message. Side and Price are only meaningful
// for EventAdd. For EventReduce, Size is the amount to remove.
type Event struct {
	Timestamp int64
	Type      EventType
	ID        OrderID
	Side      Side
	Price     float64
	Size      int64
}
