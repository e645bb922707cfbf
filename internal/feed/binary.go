package feed

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// FrameSize is the packed size of one binary event:
//
//	offset 0  int32   timestamp
//	offset 4  uint8   type ('A' / 'R')
//	offset 5  [8]byte id, zero padded
//	offset 13 int32   size
//	offset 17 uint8   side ('B' / 'S', 0 for reduce)
//	offset 18 float64 price (0 for reduce)
//
// All multi-byte fields are little endian.
const FrameSize = 26

var (
	errTimestampRange = errors.New("timestamp does not fit in int32")
	errSizeRange      = errors.New("size does not fit in int32")
	errIDTooLong      = errors.New("order id longer than 8 bytes")
)

// EncodeFrame packs ev into dst, which must be FrameSize bytes long.
func EncodeFrame(dst []byte, ev domain.Event) error {
	if len(dst) < FrameSize {
		return fmt.Errorf("feed: frame buffer too short: %d", len(dst))
	}
	if ev.Timestamp < math.MinInt32 || ev.Timestamp > math.MaxInt32 {
		return errTimestampRange
	}
	if ev.Size < math.MinInt32 || ev.Size > math.MaxInt32 {
		return errSizeRange
	}
	if len(ev.ID) > domain.MaxOrderIDLen {
		return errIDTooLong
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(int32(ev.Timestamp)))
	dst[4] = byte(ev.Type)
	id := ev.ID.Bytes()
	copy(dst[5:13], id[:])
	binary.LittleEndian.PutUint32(dst[13:17], uint32(int32(ev.Size)))
	dst[17] = byte(ev.Side)
	binary.LittleEndian.PutUint64(dst[18:26], math.Float64bits(ev.Price))
	return nil
}

// DecodeFrame unpacks one frame.
func DecodeFrame(src []byte) (domain.Event, error) {
	if len(src) != FrameSize {
		return domain.Event{}, fmt.Errorf("feed: frame is %d bytes, want %d", len(src), FrameSize)
	}
	var id [domain.MaxOrderIDLen]byte
	copy(id[:], src[5:13])
	return domain.Event{
		Timestamp: int64(int32(binary.LittleEndian.Uint32(src[0:4]))),
		Type:      domain.EventType(src[4]),
		ID:        domain.OrderIDFromBytes(id),
		Size:      int64(int32(binary.LittleEndian.Uint32(src[13:17]))),
		Side:      domain.Side(src[17]),
		Price:     math.Float64frombits(binary.LittleEndian.Uint64(src[18:26])),
	}, nil
}

// BinarySource reads consecutive frames.
type BinarySource struct {
	r      *bufio.Reader
	closer io.Closer
	seq    int64
}

// NewBinarySource reads frames from r. When r is an io.Closer it is closed by
// Close.
func NewBinarySource(r io.Reader) *BinarySource {
	s := &BinarySource{r: bufio.NewReaderSize(r, 64*FrameSize)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next frame's record. A partial trailing frame is an error.
func (s *BinarySource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("feed: read frame %d: %w", s.seq+1, err)
	}
	ev, err := DecodeFrame(buf)
	if err != nil {
		return Record{}, err
	}
	s.seq++
	return Record{Seq: s.seq, Raw: FormatEvent(ev), Bytes: buf, Event: ev}, nil
}

// Close closes the underlying reader if it has one.
func (s *BinarySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// BinaryEncoder writes frames to w.
type BinaryEncoder struct {
	w   *bufio.Writer
	buf [FrameSize]byte
}

// NewBinaryEncoder returns an encoder writing to w. Call Flush when done.
func NewBinaryEncoder(w io.Writer) *BinaryEncoder {
	return &BinaryEncoder{w: bufio.NewWriter(w)}
}

// Encode writes one frame. Events that cannot be represented are rejected
// without writing anything.
func (e *BinaryEncoder) Encode(ev domain.Event) error {
	if err := EncodeFrame(e.buf[:], ev); err != nil {
		return err
	}
	if _, err := e.w.Write(e.buf[:]); err != nil {
		return fmt.Errorf("feed: write frame: %w", err)
	}
	return nil
}

// Flush writes any buffered frames.
func (e *BinaryEncoder) Flush() error {
	return e.w.Flush()
}

var _ EventSource = (*BinarySource)(nil)
