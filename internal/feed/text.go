package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

const maxLineSize = 1 << 20

// ParseLine decodes "ts A id side price size" or "ts R id size". Tokens past
// the last field are ignored.
func ParseLine(line string) domain.Event {
	tok := strings.Fields(line)
	field := func(i int) string {
		if i < len(tok) {
			return tok[i]
		}
		return ""
	}

	ev := domain.Event{Timestamp: -1}
	if ts, err := strconv.ParseInt(field(0), 10, 64); err == nil {
		ev.Timestamp = ts
	}
	if t := field(1); len(t) == 1 {
		ev.Type = domain.EventType(t[0])
	}
	ev.ID = domain.OrderID(field(2))

	switch ev.Type {
	case domain.EventAdd:
		ev.Side, _ = domain.ParseSide(field(3))
		if p, err := strconv.ParseFloat(field(4), 64); err == nil {
			ev.Price = p
		}
		ev.Size = parseSize(field(5))
	case domain.EventReduce:
		ev.Size = parseSize(field(3))
	}
	return ev
}

func parseSize(tok string) int64 {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// FormatEvent renders ev in the text line format.
func FormatEvent(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ev.Timestamp, 10))
	b.WriteByte(' ')
	b.WriteString(ev.Type.String())
	b.WriteByte(' ')
	b.WriteString(string(ev.ID))
	if ev.Type == domain.EventAdd {
		fmt.Fprintf(&b, " %s %s", ev.Side, strconv.FormatFloat(ev.Price, 'f', -1, 64))
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(ev.Size, 10))
	return b.String()
}

// TextSource reads newline-separated events. An empty line ends the stream.
type TextSource struct {
	sc     *bufio.Scanner
	closer io.Closer
	seq    int64
}

// NewTextSource reads from r. When r is an io.Closer it is closed by Close.
func NewTextSource(r io.Reader) *TextSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &TextSource{sc: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next line's record.
func (s *TextSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return Record{}, fmt.Errorf("feed: read line %d: %w", s.seq+1, err)
		}
		return Record{}, io.EOF
	}
	line := strings.TrimSuffix(s.sc.Text(), "\r")
	if line == "" {
		return Record{}, io.EOF
	}
	s.seq++
	return Record{
		Seq:   s.seq,
		Raw:   line,
		Bytes: []byte(line),
		Event: ParseLine(line),
	}, nil
}

// Close closes the underlying reader if it has one.
func (s *TextSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var _ EventSource = (*TextSource)(nil)
