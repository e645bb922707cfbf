// Package feed decodes order-book event streams. Text lines, packed binary
// frames, Kafka topics and Redis streams all produce the same Record values,
// so the pricing core never knows which one is upstream.
//
// Decoders are lenient: a malformed token becomes a value the dispatcher
// rejects (a negative timestamp, an empty id, a zero price or size), so the
// rejection order is the same for every source. Errors returned from Next
// other than io.EOF are terminal.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Format names an input encoding.
type Format string

const (
	FormatText   Format = "text"
	FormatBinary Format = "binary"
)

// ParseFormat accepts "text" or "binary" (case insensitive). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatBinary:
		return FormatBinary, nil
	default:
		return "", fmt.Errorf("feed: unknown format %q (valid: text, binary)", s)
	}
}

// Record is one decoded event together with where it came from.
type Record struct {
	// Seq is the 1-based line or frame number.
	Seq int64
	// Raw is the record as text, used in diagnostics.
	Raw string
	// Bytes are the exact input bytes of the record.
	Bytes []byte
	Event domain.Event
}

// EventSource yields records in stream order. Next returns io.EOF once the
// stream is exhausted.
type EventSource interface {
	Next(ctx context.Context) (Record, error)
	Close() error
}
