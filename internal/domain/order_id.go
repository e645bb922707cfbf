package domain

// MaxOrderIDLen is the widest id the binary frame can carry.
const MaxOrderIDLen = 8

// OrderID is an opaque order identifier. Equality is byte equality; ids are
// never interpreted numerically.
type OrderID string

// Valid reports whether the id is 1..8 bytes of printable, non-space ASCII.
func (id OrderID) Valid() bool {
	if len(id) == 0 || len(id) > MaxOrderIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// Bytes packs the id into the fixed 8-byte wire field, zero padded. Only the
// first MaxOrderIDLen bytes are kept.
func (id OrderID) Bytes() [MaxOrderIDLen]byte {
	var out [MaxOrderIDLen]byte
	copy(out[:], id)
	return out
}

// OrderIDFromBytes is the inverse of Bytes: trailing zero bytes are padding.
// Embedded zero bytes are preserved so validation can reject them.
func OrderIDFromBytes(b [MaxOrderIDLen]byte) OrderID {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return OrderID(b[:n])
}
