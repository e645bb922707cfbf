package domain

import "fmt"

// Side identifies one half of the book. The zero value is not a valid side.
type Side byte

const (
	SideBuy  Side = 'B'
	SideSell Side = 'S'
)

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side. Reports are labelled with the opposite of
// the side that was just touched.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// String returns the one-character wire form ("B" or "S"). Invalid sides are
// rendered as the raw byte so diagnostics can echo them back.
func (s Side) String() string {
	if s == 0 {
		return ""
	}
	return string([]byte{byte(s)})
}

// Index maps BUY to 0 and SELL to 1 for fixed-size per-side arrays.
func (s Side) Index() int {
	if s == SideSell {
		return 1
	}
	return 0
}

// ParseSide converts "B" or "S" to a Side. Any other single byte is returned
// as-is with ok false so diagnostics can echo it; longer or empty tokens yield
// the zero Side.
func ParseSide(tok string) (Side, bool) {
	if len(tok) != 1 {
		return 0, false
	}
	s := Side(tok[0])
	return s, s.Valid()
}

// MarshalText renders the side as "B" or "S" in JSON and TOML.
func (s Side) MarshalText() ([]byte, error) {
	return []byte{byte(s)}, nil
}

// UnmarshalText accepts "B" or "S".
func (s *Side) UnmarshalText(text []byte) error {
	v, ok := ParseSide(string(text))
	if !ok {
		return fmt.Errorf("domain: invalid side %q", text)
	}
	*s = v
	return nil
}
