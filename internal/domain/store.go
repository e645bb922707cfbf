package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RunStore persists run records.
type RunStore interface {
	Create(ctx context.Context, run Run) error
	Update(ctx context.Context, run Run) error
	GetByID(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, opts ListOpts) ([]Run, error)
	// DeleteBefore removes finished runs started before the cutoff, together
	// with their reports and errors, and returns how many runs were removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReportStore persists emitted reports.
type ReportStore interface {
	InsertBatch(ctx context.Context, reports []ReportRecord) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]ReportRecord, error)
}

// EventErrorStore persists rejected events.
type EventErrorStore interface {
	InsertBatch(ctx context.Context, errs []EventErrorRecord) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]EventErrorRecord, error)
	CountByKind(ctx context.Context, runID string) (map[string]int64, error)
}
