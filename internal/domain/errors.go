package domain

import (
	"errors"
	"fmt"
)

// Per-event failure kinds. All of them are recoverable: the event is dropped
// and processing continues.
var (
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
	ErrInvalidOrderID       = errors.New("invalid order id")
	ErrInvalidSide          = errors.New("invalid side")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidSize          = errors.New("invalid size")
	ErrUnsupportedEventType = errors.New("unsupported message type")
	ErrDuplicateOrderID     = errors.New("duplicate order id")
	ErrUnknownOrderID       = errors.New("unknown order id")
)

var (
	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
)

// kinds maps each event sentinel to a stable snake_case key used for counters
// and persisted error rows.
var kinds = map[error]string{
	ErrInvalidTimestamp:     "invalid_timestamp",
	ErrInvalidOrderID:       "invalid_order_id",
	ErrInvalidSide:          "invalid_side",
	ErrInvalidPrice:         "invalid_price",
	ErrInvalidSize:          "invalid_size",
	ErrUnsupportedEventType: "unsupported_event_type",
	ErrDuplicateOrderID:     "duplicate_order_id",
	ErrUnknownOrderID:       "unknown_order_id",
}

// EventError is a rejected event. Err is always one of the event sentinels
// above; Detail is the human readable message printed to the diagnostic sink.
type EventError struct {
	Err       error
	Timestamp int64
	Detail    string
}

// NewEventError builds an EventError. When detail is empty the sentinel text
// is used.
func NewEventError(kind error, ts int64, detail string) *EventError {
	if detail == "" {
		detail = kind.Error()
	}
	return &EventError{Err: kind, Timestamp: ts, Detail: detail}
}

func (e *EventError) Error() string {
	return fmt.Sprintf("at %d ms %s", e.Timestamp, e.Detail)
}

func (e *EventError) Unwrap() error { return e.Err }

// Kind returns the snake_case name of the wrapped sentinel, or "unknown".
func (e *EventError) Kind() string {
	if k, ok := kinds[e.Err]; ok {
		return k
	}
	return "unknown"
}

// AsEventError unwraps err into an *EventError when it is one.
func AsEventError(err error) (*EventError, bool) {
	var ee *EventError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// ErrorKinds lists every event error kind in a stable order.
func ErrorKinds() []string {
	return []string{
		"invalid_timestamp",
		"invalid_order_id",
		"invalid_side",
		"invalid_price",
		"invalid_size",
		"unsupported_event_type",
		"duplicate_order_id",
		"unknown_order_id",
	}
}
