// Package notify delivers income reports to their sinks and turns notable
// report transitions and run outcomes into operator alerts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Alert event types.
const (
	EventUnavailable = "unavailable"
	EventRecovered   = "recovered"
	EventRunFinished = "run_finished"
	EventRunFailed   = "run_failed"
)

// Alert is one operator notification.
type Alert struct {
	Event      string
	Instrument string
	Title      string
	Message    string
	At         time.Time
}

// AlertSender is one alert channel.
type AlertSender interface {
	SendAlert(ctx context.Context, a Alert) error
	Name() string
}

// Alerter dispatches alerts to its senders, dropping event types that are not
// enabled. An empty event list enables all of them.
type Alerter struct {
	senders  []AlertSender
	events   map[string]bool
	throttle *throttle
	logger   *slog.Logger
}

// NewAlerter creates an Alerter.
func NewAlerter(senders []AlertSender, events []string, logger *slog.Logger) *Alerter {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Alerter{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "alerter")),
	}
}

// WithCooldown drops an alert when one with the same event and instrument
// was delivered less than d ago. Run outcomes are never throttled.
func (a *Alerter) WithCooldown(d time.Duration) *Alerter {
	if d > 0 {
		a.throttle = newThrottle(d)
	}
	return a
}

// Enabled reports whether alerts of type event are delivered.
func (a *Alerter) Enabled(event string) bool {
	return len(a.events) == 0 || a.events[event]
}

// Alert delivers al to every sender if its event type is enabled.
func (a *Alerter) Alert(ctx context.Context, al Alert) error {
	if len(a.senders) == 0 {
		return nil
	}
	if !a.Enabled(al.Event) {
		a.logger.DebugContext(ctx, "alert filtered out", slog.String("event", al.Event))
		return nil
	}
	if a.throttle != nil && (al.Event == EventUnavailable || al.Event == EventRecovered) &&
		!a.throttle.allow(al.Event+"|"+al.Instrument) {
		a.logger.DebugContext(ctx, "alert throttled",
			slog.String("event", al.Event),
			slog.String("instrument", al.Instrument),
		)
		return nil
	}
	if al.At.IsZero() {
		al.At = time.Now().UTC()
	}

	var errs []string
	for _, s := range a.senders {
		if err := s.SendAlert(ctx, al); err != nil {
			a.logger.ErrorContext(ctx, "alert sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", al.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d alert sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// RunFinished alerts on a completed run.
func (a *Alerter) RunFinished(ctx context.Context, run *domain.Run) error {
	if run.Status == domain.RunStatusFailed {
		return a.Alert(ctx, Alert{
			Event:      EventRunFailed,
			Instrument: run.Instrument,
			Title:      "Pricer run failed",
			Message: fmt.Sprintf("run %s on %s failed after %d events: %s",
				run.ID, run.Source, run.Events, run.Error),
		})
	}
	return a.Alert(ctx, Alert{
		Event:      EventRunFinished,
		Instrument: run.Instrument,
		Title:      "Pricer run finished",
		Message: fmt.Sprintf("run %s on %s: %d events, %d reports, %d rejected in %s",
			run.ID, run.Source, run.Events, run.Reports, run.Rejected, run.Duration().Round(time.Millisecond)),
	})
}

// AvailabilityWatch is a ReportSender that alerts when a side's income becomes
// unavailable and when it recovers.
type AvailabilityWatch struct {
	alerter *Alerter

	mu   sync.Mutex
	down [2]bool
}

// NewAvailabilityWatch creates a watch alerting through alerter.
func NewAvailabilityWatch(alerter *Alerter) *AvailabilityWatch {
	return &AvailabilityWatch{alerter: alerter}
}

// Send inspects d and raises an alert on an availability change.
func (w *AvailabilityWatch) Send(ctx context.Context, d Delivery) error {
	idx := d.Report.Side.Index()
	w.mu.Lock()
	wasDown := w.down[idx]
	w.down[idx] = !d.Report.Available
	w.mu.Unlock()

	switch {
	case !d.Report.Available && !wasDown:
		return w.alerter.Alert(ctx, Alert{
			Event:      EventUnavailable,
			Instrument: d.Instrument,
			Title:      fmt.Sprintf("%s income unavailable", d.Instrument),
			Message:    fmt.Sprintf("side %s cannot fill the target size at %d ms", d.Report.Side, d.Report.Timestamp),
		})
	case d.Report.Available && wasDown:
		return w.alerter.Alert(ctx, Alert{
			Event:      EventRecovered,
			Instrument: d.Instrument,
			Title:      fmt.Sprintf("%s income recovered", d.Instrument),
			Message:    fmt.Sprintf("side %s income %.2f at %d ms", d.Report.Side, d.Report.Income, d.Report.Timestamp),
		})
	}
	return nil
}

// Name returns the sender identifier.
func (w *AvailabilityWatch) Name() string { return "availability_watch" }
