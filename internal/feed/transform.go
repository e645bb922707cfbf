package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// TransformStats summarises a text-to-binary conversion.
type TransformStats struct {
	Lines   int64
	Frames  int64
	Skipped int64
}

// Transform converts text events from r into binary frames on w. Lines that
// cannot be represented as a frame are reported to diag and skipped; invalid
// but representable events are carried over unchanged so the pricer rejects
// them the same way it would from text.
func Transform(ctx context.Context, r io.Reader, w io.Writer, diag io.Writer) (TransformStats, error) {
	var st TransformStats
	src := NewTextSource(r)
	enc := NewBinaryEncoder(w)

	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.Lines++
		if err := enc.Encode(rec.Event); err != nil {
			if !unrepresentable(err) {
				return st, err
			}
			st.Skipped++
			if diag != nil {
				fmt.Fprintf(diag, "line: %d [%s]: %v\n", rec.Seq, rec.Raw, err)
			}
			continue
		}
		st.Frames++
	}
	if err := enc.Flush(); err != nil {
		return st, fmt.Errorf("feed: flush frames: %w", err)
	}
	return st, nil
}

func unrepresentable(err error) bool {
	return errors.Is(err, errTimestampRange) || errors.Is(err, errSizeRange) || errors.Is(err, errIDTooLong)
}
