package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// ReportStore implements domain.ReportStore.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a ReportStore backed by pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// InsertBatch writes reports in one round trip. Reports already stored under
// the same run and sequence number are skipped.
func (s *ReportStore) InsertBatch(ctx context.Context, reports []domain.ReportRecord) error {
	if len(reports) == 0 {
		return nil
	}

	const query = `
		INSERT INTO income_reports (run_id, seq, instrument, ts_ms, side, available, income)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, seq) DO NOTHING`

	batch := &pgx.Batch{}
	for _, r := range reports {
		batch.Queue(query, r.RunID, r.Seq, r.Instrument, r.Timestamp, r.Side.String(), r.Available, r.Income)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range reports {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert report batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRun returns a run's reports in emission order.
func (s *ReportStore) ListByRun(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.ReportRecord, error) {
	query, args := listClause(
		`SELECT run_id::text, seq, instrument, ts_ms, side, available, income FROM income_reports WHERE run_id = $1`,
		[]any{runID}, "", "seq ASC", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports %s: %w", runID, err)
	}
	defer rows.Close()

	var out []domain.ReportRecord
	for rows.Next() {
		var (
			r    domain.ReportRecord
			side string
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Instrument, &r.Timestamp, &side, &r.Available, &r.Income); err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		r.Side, _ = domain.ParseSide(side)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list reports rows: %w", err)
	}
	return out, nil
}

var _ domain.ReportStore = (*ReportStore)(nil)
