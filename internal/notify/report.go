package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Delivery is one report together with the run it belongs to.
type Delivery struct {
	RunID      string        `json:"run_id"`
	Instrument string        `json:"instrument"`
	Seq        int64         `json:"seq"`
	Report     domain.Report `json:"report"`
}

// ReportSender is one destination for reports.
type ReportSender interface {
	Send(ctx context.Context, d Delivery) error
	Name() string
}

// Flusher is implemented by senders that buffer.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Publisher fans a report out to every sender. A failing sender does not stop
// delivery to the others.
type Publisher struct {
	senders []ReportSender
	logger  *slog.Logger
}

// NewPublisher creates a Publisher over senders.
func NewPublisher(senders []ReportSender, logger *slog.Logger) *Publisher {
	return &Publisher{
		senders: senders,
		logger:  logger.With(slog.String("component", "report_publisher")),
	}
}

// Len returns the number of registered senders.
func (p *Publisher) Len() int { return len(p.senders) }

// Publish delivers d to all senders and returns a combined error naming the
// senders that failed.
func (p *Publisher) Publish(ctx context.Context, d Delivery) error {
	var errs []string
	for _, s := range p.senders {
		if err := s.Send(ctx, d); err != nil {
			p.logger.WarnContext(ctx, "report sender failed",
				slog.String("sender", s.Name()),
				slog.Int64("seq", d.Seq),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d report sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Flush flushes every sender that buffers.
func (p *Publisher) Flush(ctx context.Context) error {
	var errs []string
	for _, s := range p.senders {
		f, ok := s.(Flusher)
		if !ok {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: flush failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
