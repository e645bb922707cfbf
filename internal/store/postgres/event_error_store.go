package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// EventErrorStore implements domain.EventErrorStore.
type EventErrorStore struct {
	pool *pgxpool.Pool
}

// NewEventErrorStore creates an EventErrorStore backed by pool.
func NewEventErrorStore(pool *pgxpool.Pool) *EventErrorStore {
	return &EventErrorStore{pool: pool}
}

var eventErrorCols = []string{"run_id", "line", "ts_ms", "kind", "detail", "raw", "created_at"}

// InsertBatch bulk-loads rejected events with COPY.
func (s *EventErrorStore) InsertBatch(ctx context.Context, errs []domain.EventErrorRecord) error {
	if len(errs) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"event_errors"},
		eventErrorCols,
		pgx.CopyFromSlice(len(errs), func(i int) ([]any, error) {
			e := errs[i]
			runID, err := uuid.Parse(e.RunID)
			if err != nil {
				return nil, fmt.Errorf("run id %q: %w", e.RunID, err)
			}
			return []any{runID, e.Line, e.Timestamp, e.Kind, e.Detail, e.Raw, e.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres: copy %d event errors: %w", len(errs), err)
	}
	return nil
}

// ListByRun returns a run's rejected events in input order.
func (s *EventErrorStore) ListByRun(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.EventErrorRecord, error) {
	query, args := listClause(
		`SELECT run_id::text, line, ts_ms, kind, detail, raw, created_at FROM event_errors WHERE run_id = $1`,
		[]any{runID}, "created_at", "line ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list event errors %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.EventErrorRecord
	for rows.Next() {
		var e domain.EventErrorRecord
		if err := rows.Scan(&e.RunID, &e.Line, &e.Timestamp, &e.Kind, &e.Detail, &e.Raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list event errors rows: %w", err)
	}
	return out, nil
}

// CountByKind tallies a run's rejected events per error kind.
func (s *EventErrorStore) CountByKind(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, COUNT(*) FROM event_errors WHERE run_id = $1 GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: count event errors %s: %w", runID, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan event error count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

var _ domain.EventErrorStore = (*EventErrorStore)(nil)
