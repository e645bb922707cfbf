package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// ReportChannel is the pub/sub channel carrying report frames.
func ReportChannel(instrument string) string {
	return "reports:" + instrument
}

// ReportStream is the durable stream carrying JSON reports.
func ReportStream(instrument string) string {
	return "stream:reports:" + instrument
}

// BusSender publishes reports on the signal bus and keeps the latest income
// per side in the cache.
type BusSender struct {
	bus   domain.SignalBus
	cache domain.IncomeCache
}

// NewBusSender creates a BusSender. cache may be nil.
func NewBusSender(bus domain.SignalBus, cache domain.IncomeCache) *BusSender {
	return &BusSender{bus: bus, cache: cache}
}

// Send publishes a protobuf frame, appends JSON to the stream and updates the
// cache.
func (b *BusSender) Send(ctx context.Context, d Delivery) error {
	frame, err := EncodeReportFrame(d)
	if err != nil {
		return err
	}
	if err := b.bus.Publish(ctx, ReportChannel(d.Instrument), frame); err != nil {
		return err
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("bus: marshal report: %w", err)
	}
	if err := b.bus.StreamAppend(ctx, ReportStream(d.Instrument), payload); err != nil {
		return err
	}

	if b.cache != nil {
		if err := b.cache.SetLatest(ctx, d.Instrument, d.Report); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the sender identifier.
func (b *BusSender) Name() string { return "bus" }
