package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// TextSender writes one formatted report per line.
type TextSender struct {
	w         *bufio.Writer
	buf       []byte
	lineFlush bool
}

// NewTextSender writes to w. Output is buffered until Flush.
func NewTextSender(w io.Writer) *TextSender {
	return &TextSender{w: bufio.NewWriter(w)}
}

// FlushEachLine makes every Send write through, for inputs that may wait
// indefinitely for the next event.
func (t *TextSender) FlushEachLine() *TextSender {
	t.lineFlush = true
	return t
}

// Send appends the report line.
func (t *TextSender) Send(_ context.Context, d Delivery) error {
	t.buf = d.Report.AppendFormat(t.buf[:0])
	t.buf = append(t.buf, '\n')
	if _, err := t.w.Write(t.buf); err != nil {
		return fmt.Errorf("text: write report: %w", err)
	}
	if t.lineFlush {
		if err := t.w.Flush(); err != nil {
			return fmt.Errorf("text: flush: %w", err)
		}
	}
	return nil
}

// Flush writes buffered lines.
func (t *TextSender) Flush(context.Context) error {
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("text: flush: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TextSender) Name() string { return "text" }

var _ Flusher = (*TextSender)(nil)
