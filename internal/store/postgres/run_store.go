package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// RunStore implements domain.RunStore.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a RunStore backed by pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runSelectCols = `id::text, instrument, target_size, source, format, input_digest,
	events, reports, rejected, reject_kinds, status, error, meta, started_at, finished_at`

// Create inserts a new run.
func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	kinds, meta, err := runJSON(run)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO pricer_runs (
			id, instrument, target_size, source, format, input_digest,
			events, reports, rejected, reject_kinds, status, error, meta,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = s.pool.Exec(ctx, query,
		run.ID, run.Instrument, run.TargetSize, run.Source, run.Format, run.InputDigest,
		run.Events, run.Reports, run.Rejected, kinds, string(run.Status), run.Error, meta,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of a run.
func (s *RunStore) Update(ctx context.Context, run domain.Run) error {
	kinds, meta, err := runJSON(run)
	if err != nil {
		return err
	}
	const query = `
		UPDATE pricer_runs SET
			input_digest = $2, events = $3, reports = $4, rejected = $5,
			reject_kinds = $6, status = $7, error = $8, meta = $9, finished_at = $10
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.InputDigest, run.Events, run.Reports, run.Rejected,
		kinds, string(run.Status), run.Error, meta, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one run or domain.ErrNotFound.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runSelectCols+` FROM pricer_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, domain.ErrNotFound
		}
		return domain.Run{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first.
func (s *RunStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Run, error) {
	query, args := listClause(`SELECT `+runSelectCols+` FROM pricer_runs WHERE 1=1`, nil,
		"started_at", "started_at DESC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return runs, nil
}

// DeleteBefore removes finished runs older than before. Reports and errors go
// with them through ON DELETE CASCADE.
func (s *RunStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pricer_runs WHERE started_at < $1 AND status <> $2`,
		before, string(domain.RunStatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete runs before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func runJSON(run domain.Run) (kinds, meta []byte, err error) {
	if run.RejectKinds == nil {
		kinds = []byte("{}")
	} else if kinds, err = json.Marshal(run.RejectKinds); err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal reject kinds: %w", err)
	}
	if run.Meta == nil {
		meta = []byte("{}")
	} else if meta, err = json.Marshal(run.Meta); err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal run meta: %w", err)
	}
	return kinds, meta, nil
}

func scanRun(row pgx.Row) (domain.Run, error) {
	var (
		run    domain.Run
		status string
		kinds  []byte
		meta   []byte
	)
	err := row.Scan(
		&run.ID, &run.Instrument, &run.TargetSize, &run.Source, &run.Format, &run.InputDigest,
		&run.Events, &run.Reports, &run.Rejected, &kinds, &status, &run.Error, &meta,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return domain.Run{}, err
	}
	run.Status = domain.RunStatus(status)
	if len(kinds) > 0 {
		if err := json.Unmarshal(kinds, &run.RejectKinds); err != nil {
			return domain.Run{}, fmt.Errorf("unmarshal reject kinds: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &run.Meta); err != nil {
			return domain.Run{}, fmt.Errorf("unmarshal run meta: %w", err)
		}
	}
	return run, nil
}

var _ domain.RunStore = (*RunStore)(nil)
