package domain

import "strconv"

// Report is one emitted income evaluation. Side is the reporting side (the
// opposite of the side whose book was evaluated). When Available is false
// Income is meaningless and the report renders as "NA".
type Report struct {
	Timestamp int64   `json:"timestamp"`
	Side      Side    `json:"side"`
	Available bool    `json:"available"`
	Income    float64 `json:"income"`
}

// Format renders the report in the line format "<ts> <side> <income|NA>".
func (r Report) Format() string {
	return string(r.AppendFormat(nil))
}

// AppendFormat appends the formatted report (without newline) to dst.
func (r Report) AppendFormat(dst []byte) []byte {
	dst = strconv.AppendInt(dst, r.Timestamp, 10)
	dst = append(dst, ' ', byte(r.Side), ' ')
	if !r.Available {
		return append(dst, "NA"...)
	}
	return strconv.AppendFloat(dst, r.Income, 'f', 2, 64)
}

// SideName returns the reporting side as a one-letter string.
func (r Report) SideName() string {
	return r.Side.String()
}
