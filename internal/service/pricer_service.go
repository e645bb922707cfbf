// Package service holds the application services that sit between the event
// sources and the pricing core.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/bookpricer/internal/book"
	"github.com/alanyoungcy/bookpricer/internal/dispatch"
	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Stats are running counters for one instrument.
type Stats struct {
	Events        int64            `json:"events"`
	Adds          int64            `json:"adds"`
	Reduces       int64            `json:"reduces"`
	Reports       int64            `json:"reports"`
	Unavailable   int64            `json:"unavailable_reports"`
	Rejected      int64            `json:"rejected"`
	RejectKinds   map[string]int64 `json:"reject_kinds"`
	LastTimestamp int64            `json:"last_timestamp"`
}

// SideSummary describes one side of the book for observers.
type SideSummary struct {
	Orders      int      `json:"orders"`
	Shares      int64    `json:"shares"`
	Ghosts      int      `json:"ghosts"`
	SequenceLen int      `json:"sequence_len"`
	Best        *float64 `json:"best,omitempty"`
}

// Snapshot is a point-in-time view of the service.
type Snapshot struct {
	Instrument  string          `json:"instrument"`
	TargetSize  int64           `json:"target_size"`
	LastTouched domain.Side     `json:"last_touched"`
	Buy         SideSummary     `json:"buy"`
	Sell        SideSummary     `json:"sell"`
	Stats       Stats           `json:"stats"`
	LastReports []domain.Report `json:"last_reports"`
}

// PricerService owns the book of one instrument. Process is the single
// writer; Snapshot and Depth may be called from other goroutines.
type PricerService struct {
	mu          sync.RWMutex
	instrument  string
	target      int64
	disp        *dispatch.Dispatcher
	stats       Stats
	lastReports [2]*domain.Report

	depth       domain.DepthCache
	depthEvery  int64
	depthLevels int

	logger *slog.Logger
}

// NewPricerService creates a service evaluating target shares per event.
func NewPricerService(instrument string, target int64, logger *slog.Logger) *PricerService {
	return &PricerService{
		instrument: instrument,
		target:     target,
		disp:       dispatch.New(book.New()),
		stats:      Stats{RejectKinds: map[string]int64{}},
		logger:     logger.With(slog.String("component", "pricer_service"), slog.String("instrument", instrument)),
	}
}

// WithDepthCache publishes the top levels of both sides every n accepted
// events.
func (s *PricerService) WithDepthCache(c domain.DepthCache, every int64, levels int) *PricerService {
	s.depth = c
	s.depthEvery = every
	s.depthLevels = levels
	return s
}

// Instrument returns the instrument this service prices.
func (s *PricerService) Instrument() string { return s.instrument }

// TargetSize returns the evaluated share quantity.
func (s *PricerService) TargetSize() int64 { return s.target }

// Process applies one event and returns the report it produced, if any.
// A returned error is always a *domain.EventError and leaves the book as it
// was.
func (s *PricerService) Process(ctx context.Context, ev domain.Event) (domain.Report, bool, error) {
	s.mu.Lock()
	s.stats.Events++
	r, ok, err := s.disp.Process(ev, s.target)
	if err != nil {
		s.stats.Rejected++
		if ee, isEvent := domain.AsEventError(err); isEvent {
			s.stats.RejectKinds[ee.Kind()]++
		}
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "event rejected",
			slog.Int64("timestamp", ev.Timestamp),
			slog.String("error", err.Error()),
		)
		return domain.Report{}, false, err
	}

	if ev.Type == domain.EventAdd {
		s.stats.Adds++
	} else {
		s.stats.Reduces++
	}
	s.stats.LastTimestamp = ev.Timestamp
	if ok {
		s.stats.Reports++
		if !r.Available {
			s.stats.Unavailable++
		}
		rc := r
		s.lastReports[r.Side.Index()] = &rc
	}
	accepted := s.stats.Adds + s.stats.Reduces
	publishDepth := s.depth != nil && s.depthEvery > 0 && accepted%s.depthEvery == 0
	var snap domain.DepthSnapshot
	if publishDepth {
		snap = s.depthLocked(s.depthLevels)
	}
	s.mu.Unlock()

	if publishDepth {
		if derr := s.depth.SetDepth(ctx, snap); derr != nil {
			s.logger.WarnContext(ctx, "pricer_service: set depth failed",
				slog.String("error", derr.Error()),
			)
		}
	}
	return r, ok, nil
}

// Snapshot returns counters and a summary of both sides.
func (s *PricerService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.disp.Book()
	out := Snapshot{
		Instrument:  s.instrument,
		TargetSize:  s.target,
		LastTouched: b.LastTouched(),
		Buy:         summarize(b.Side(domain.SideBuy)),
		Sell:        summarize(b.Side(domain.SideSell)),
		Stats:       s.stats,
	}
	out.Stats.RejectKinds = make(map[string]int64, len(s.stats.RejectKinds))
	for k, v := range s.stats.RejectKinds {
		out.Stats.RejectKinds[k] = v
	}
	for _, r := range s.lastReports {
		if r != nil {
			out.LastReports = append(out.LastReports, *r)
		}
	}
	return out
}

// Depth returns up to levels aggregated levels per side.
func (s *PricerService) Depth(levels int) domain.DepthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.depthLocked(levels)
}

func (s *PricerService) depthLocked(levels int) domain.DepthSnapshot {
	bids, asks := s.disp.Book().Depth(levels)
	return domain.DepthSnapshot{
		Instrument: s.instrument,
		Timestamp:  s.stats.LastTimestamp,
		Bids:       bids,
		Asks:       asks,
	}
}

func summarize(sb *book.SideBook) SideSummary {
	out := SideSummary{
		Orders:      sb.Len(),
		Shares:      sb.TotalShares(),
		Ghosts:      sb.Ghosts(),
		SequenceLen: sb.SequenceLen(),
	}
	if best, ok := sb.Best(); ok {
		p := best.Price
		out.Best = &p
	}
	return out
}
