package notify

import (
	"context"
	"sync"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// StoreSender persists reports in batches.
type StoreSender struct {
	store     domain.ReportStore
	batchSize int

	mu      sync.Mutex
	pending []domain.ReportRecord
}

// NewStoreSender buffers up to batchSize reports before writing.
func NewStoreSender(store domain.ReportStore, batchSize int) *StoreSender {
	if batchSize < 1 {
		batchSize = 1
	}
	return &StoreSender{store: store, batchSize: batchSize}
}

// Send buffers d and writes the batch once it is full.
func (s *StoreSender) Send(ctx context.Context, d Delivery) error {
	s.mu.Lock()
	s.pending = append(s.pending, domain.ReportRecord{
		RunID:      d.RunID,
		Seq:        d.Seq,
		Instrument: d.Instrument,
		Report:     d.Report,
	})
	full := len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes whatever is buffered. On failure the batch is kept for the
// next attempt.
func (s *StoreSender) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.InsertBatch(ctx, s.pending); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return nil
}

// Name returns the sender identifier.
func (s *StoreSender) Name() string { return "store" }

var _ Flusher = (*StoreSender)(nil)
