package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// Pruner deletes old runs from the run store on a cron schedule. Archived
// runs remain available in object storage.
type Pruner struct {
	runs      domain.RunStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner keeps runs for retentionDays days.
func NewPruner(runs domain.RunStore, retentionDays int, logger *slog.Logger) *Pruner {
	return &Pruner{
		runs:      runs,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    logger.With(slog.String("component", "pruner")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Prune deletes runs older than the retention window once.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.runs.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pipeline: prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	p.logger.InfoContext(ctx, "pruned runs", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	return n, nil
}

// RunCron prunes on every match of the 5-field cron expression until ctx is
// cancelled.
func (p *Pruner) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return fmt.Errorf("pipeline: cron %q: %w", expr, err)
	}
	for {
		next, err := sched.next(p.now())
		if err != nil {
			return fmt.Errorf("pipeline: cron %q: %w", expr, err)
		}
		p.logger.DebugContext(ctx, "next prune", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := p.Prune(ctx); err != nil {
				p.logger.ErrorContext(ctx, "prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is the set of values one cron field matches; nil matches all.
type cronField []int

func (f cronField) matches(v int) bool {
	return f == nil || slices.Contains(f, v)
}

// parseCronField accepts "*", "*/n", "a", "a-b", "a-b/n" and comma lists of
// those, bounded by [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return nil, nil
	}
	var out cronField
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("bad step in %q", part)
			}
			step, part = n, base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var errA, errB error
			from, errA = strconv.Atoi(a)
			to, errB = strconv.Atoi(b)
			if errA != nil || errB != nil {
				return nil, fmt.Errorf("bad range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad value %q", part)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%q outside %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			out = append(out, v)
		}
	}
	return out, nil
}

type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return cronSchedule{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		parsed[i] = cf
	}
	return cronSchedule{parsed[0], parsed[1], parsed[2], parsed[3], parsed[4]}, nil
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

// next returns the first matching minute strictly after t, searching at most
// one year ahead.
func (c cronSchedule) next(t time.Time) (time.Time, error) {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for ; candidate.Before(limit); candidate = candidate.Add(time.Minute) {
		if c.matches(candidate) {
			return candidate, nil
		}
	}
	return time.Time{}, fmt.Errorf("no match within a year")
}
