package domain

// DepthLevel is one aggregated price level of a side, as seen by observers.
type DepthLevel struct {
	Price  float64 `json:"price"`
	Shares int64   `json:"shares"`
	Orders int     `json:"orders"`
}

// DepthSnapshot is the favorable end of both sides at a point in the stream.
type DepthSnapshot struct {
	Instrument string       `json:"instrument"`
	Timestamp  int64        `json:"timestamp"`
	Bids       []DepthLevel `json:"bids"`
	Asks       []DepthLevel `json:"asks"`
}
