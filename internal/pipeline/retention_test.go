package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

type pruneStore struct {
	memRuns
	cutoffs []time.Time
}

func (p *pruneStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, before)
	return 3, nil
}

var _ domain.RunStore = (*pruneStore)(nil)

func TestPrunerCutoff(t *testing.T) {
	store := &pruneStore{}
	p := NewPruner(store, 7, testLogger())
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 5, 3, 3, 0, 0, 0, time.UTC), store.cutoffs[0])
}

func TestCronNext(t *testing.T) {
	base := time.Date(2026, 5, 10, 3, 7, 30, 0, time.UTC) // Sunday

	for _, tc := range []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 5, 10, 3, 8, 0, 0, time.UTC)},
		{"0 4 * * *", time.Date(2026, 5, 10, 4, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 5, 10, 3, 15, 0, 0, time.UTC)},
		{"30 2 * * 1-5", time.Date(2026, 5, 11, 2, 30, 0, 0, time.UTC)},
		{"0 0 1 6 *", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"5,10 3 * * *", time.Date(2026, 5, 10, 3, 10, 0, 0, time.UTC)},
	} {
		t.Run(tc.expr, func(t *testing.T) {
			sched, err := parseCron(tc.expr)
			require.NoError(t, err)
			got, err := sched.next(base)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCronParseErrors(t *testing.T) {
	for _, expr := range []string{
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
		"* * 0 * *",
	} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronNoMatch(t *testing.T) {
	sched, err := parseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, err = sched.next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
