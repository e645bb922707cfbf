package pipeline

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/alanyoungcy/bookpricer/internal/domain"
	"github.com/alanyoungcy/bookpricer/internal/feed"
	"github.com/alanyoungcy/bookpricer/internal/notify"
	"github.com/alanyoungcy/bookpricer/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

type memRuns struct {
	created []domain.Run
	updated []domain.Run
}

func (m *memRuns) Create(_ context.Context, run domain.Run) error {
	m.created = append(m.created, run)
	return nil
}

func (m *memRuns) Update(_ context.Context, run domain.Run) error {
	m.updated = append(m.updated, run)
	return nil
}

func (m *memRuns) GetByID(context.Context, string) (domain.Run, error) {
	return domain.Run{}, domain.ErrNotFound
}

func (m *memRuns) List(context.Context, domain.ListOpts) ([]domain.Run, error) { return nil, nil }

func (m *memRuns) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memErrors struct {
	records []domain.EventErrorRecord
}

func (m *memErrors) InsertBatch(_ context.Context, errs []domain.EventErrorRecord) error {
	m.records = append(m.records, errs...)
	return nil
}

func (m *memErrors) ListByRun(context.Context, string, domain.ListOpts) ([]domain.EventErrorRecord, error) {
	return m.records, nil
}

func (m *memErrors) CountByKind(context.Context, string) (map[string]int64, error) { return nil, nil }

type memArchiver struct {
	artifacts []domain.RunArtifacts
}

func (m *memArchiver) ArchiveRun(_ context.Context, a domain.RunArtifacts) (string, error) {
	m.artifacts = append(m.artifacts, a)
	return "runs/x/" + a.Run.ID, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("stdout closed") }

func newRunner(target int64, out, diag io.Writer, stdin io.Reader) *Runner {
	return NewRunner(RunnerDeps{
		Service:     service.NewPricerService("ACME", target, testLogger()),
		Output:      out,
		Diagnostics: diag,
		Open:        feed.OpenOptions{Stdin: stdin},
		Logger:      testLogger(),
	})
}

func TestRunnerGoldenOutputs(t *testing.T) {
	for _, tc := range []struct {
		target int64
		golden string
	}{
		{200, "testdata/sample.200.out"},
		{1, "testdata/sample.1.out"},
	} {
		t.Run(tc.golden, func(t *testing.T) {
			var out, diag bytes.Buffer
			run, err := newRunner(tc.target, &out, &diag, nil).Run(context.Background(), RunConfig{
				Input:  "testdata/sample.txt",
				Format: feed.FormatText,
			})
			require.NoError(t, err)

			want := readFile(t, tc.golden)
			assert.Equal(t, want, out.String())
			assert.Empty(t, diag.String())
			assert.Equal(t, int64(20), run.Events)
			assert.Equal(t, int64(strings.Count(want, "\n")), run.Reports)
			assert.Equal(t, domain.RunStatusFinished, run.Status)
			assert.NotNil(t, run.FinishedAt)
		})
	}
}

func TestRunnerBinaryMatchesText(t *testing.T) {
	f, err := os.Open("testdata/sample.txt")
	require.NoError(t, err)
	defer f.Close()

	var frames bytes.Buffer
	stats, err := feed.Transform(context.Background(), f, &frames, io.Discard)
	require.NoError(t, err)
	require.Equal(t, 20, int(stats.Frames))

	var out, diag bytes.Buffer
	run, err := newRunner(200, &out, &diag, &frames).Run(context.Background(), RunConfig{
		Input:  "-",
		Format: feed.FormatBinary,
	})
	require.NoError(t, err)
	assert.Equal(t, readFile(t, "testdata/sample.200.out"), out.String())
	assert.Equal(t, "stdin", run.Source)
	assert.Equal(t, "binary", run.Format)
}

func TestRunnerInputDigest(t *testing.T) {
	var out bytes.Buffer
	run, err := newRunner(200, &out, io.Discard, nil).Run(context.Background(), RunConfig{
		Input:  "testdata/sample.txt",
		Format: feed.FormatText,
	})
	require.NoError(t, err)

	sum := blake2b.Sum256([]byte(readFile(t, "testdata/sample.txt")))
	assert.Equal(t, hex.EncodeToString(sum[:]), run.InputDigest)
}

func TestRunnerMaxMessages(t *testing.T) {
	var out bytes.Buffer
	run, err := newRunner(200, &out, io.Discard, nil).Run(context.Background(), RunConfig{
		Input:       "testdata/sample.txt",
		Format:      feed.FormatText,
		MaxMessages: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "28800758 S 8832.56\n", out.String())
	assert.Equal(t, int64(5), run.Events)
}

func TestRunnerMaxMessagesCountsRejectedLines(t *testing.T) {
	input := strings.Join([]string{
		"1 A a B 10 100",
		"-1 A b B 10 100",
		"2 A c B 10 100",
		"3 A d B 10 100",
	}, "\n")

	var out bytes.Buffer
	run, err := newRunner(200, &out, io.Discard, strings.NewReader(input)).Run(context.Background(), RunConfig{
		Format:      feed.FormatText,
		MaxMessages: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "2 S 2000.00\n", out.String())
	assert.Equal(t, int64(3), run.Events)
	assert.Equal(t, int64(1), run.Rejected)
}

func TestRunnerDiagnostics(t *testing.T) {
	input := strings.Join([]string{
		"1 A a B 10 100",
		"-5 A b B 10 100",
		"2 A a S 10 100",
		"3 X c B 10 100",
		"4 R zz 5",
		"5 A toolongid B 10 1",
		"6 A e Q 10 1",
		"7 A e B 0 1",
		"8 A e B 10 0",
		"9 R a 0",
		"10 R a 100",
		"",
		"11 A f B 10 1",
	}, "\n")

	var out, diag bytes.Buffer
	run, err := newRunner(100, &out, &diag, strings.NewReader(input)).Run(context.Background(), RunConfig{
		Format: feed.FormatText,
	})
	require.NoError(t, err)

	assert.Equal(t, "1 S 1000.00\n10 S NA\n", out.String())
	assert.Equal(t, strings.Join([]string{
		"line: 2 [-5 A b B 10 100]:err: at -5 ms invalid timestamp",
		"line: 3 [2 A a S 10 100]:err: at 2 ms can't add order'a' (order with the id already exists in the book)",
		"line: 4 [3 X c B 10 100]:err: at 3 ms unsupported message type 'X'",
		"line: 5 [4 R zz 5]:err: at 4 ms can't reduce order'zz' (no order id in the book)",
		"line: 6 [5 A toolongid B 10 1]:err: at 5 ms invalid order id 'toolongid'",
		"line: 7 [6 A e Q 10 1]:err: at 6 ms invalid side 'Q'",
		"line: 8 [7 A e B 0 1]:err: at 7 ms invalid price 0",
		"line: 9 [8 A e B 10 0]:err: at 8 ms invalid size 0",
		"line: 10 [9 R a 0]:err: at 9 ms invalid size 0",
		"",
	}, "\n"), diag.String())

	assert.Equal(t, int64(11), run.Events, "the empty line ends the stream")
	assert.Equal(t, int64(9), run.Rejected)
	assert.Equal(t, int64(2), run.RejectKinds["invalid_size"])
	assert.Equal(t, int64(1), run.RejectKinds["unknown_order_id"])
}

func TestRunnerRecordsRunAndErrors(t *testing.T) {
	runs := &memRuns{}
	errStore := &memErrors{}
	archiver := &memArchiver{}

	input := "1 A a B 10 100\n2 R nope 1\n3 R a 100\n"
	var out, diag bytes.Buffer
	r := NewRunner(RunnerDeps{
		Service:     service.NewPricerService("ACME", 100, testLogger()),
		Output:      &out,
		Diagnostics: &diag,
		Open:        feed.OpenOptions{Stdin: strings.NewReader(input)},
		Runs:        runs,
		Errors:      errStore,
		Archiver:    archiver,
		Logger:      testLogger(),
	})

	run, err := r.Run(context.Background(), RunConfig{Format: feed.FormatText})
	require.NoError(t, err)

	require.Len(t, runs.created, 1)
	assert.Equal(t, domain.RunStatusRunning, runs.created[0].Status)
	require.Len(t, runs.updated, 1)
	assert.Equal(t, domain.RunStatusFinished, runs.updated[0].Status)
	assert.Equal(t, run.ID, runs.updated[0].ID)
	assert.Equal(t, "runs/x/"+run.ID, runs.updated[0].Meta["archive"])

	require.Len(t, errStore.records, 1)
	rec := errStore.records[0]
	assert.Equal(t, run.ID, rec.RunID)
	assert.Equal(t, int64(2), rec.Line)
	assert.Equal(t, int64(2), rec.Timestamp)
	assert.Equal(t, "unknown_order_id", rec.Kind)
	assert.Equal(t, "can't reduce order'nope' (no order id in the book)", rec.Detail)
	assert.Equal(t, "2 R nope 1", rec.Raw)

	require.Len(t, archiver.artifacts, 1)
	assert.Equal(t, "1 S 1000.00\n3 S NA\n", string(archiver.artifacts[0].Reports))
	assert.Equal(t, diag.String(), string(archiver.artifacts[0].Errors))
}

type recordingSender struct {
	deliveries []notify.Delivery
}

func (r *recordingSender) Send(_ context.Context, d notify.Delivery) error {
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func TestRunnerPublishesReports(t *testing.T) {
	rec := &recordingSender{}
	var out bytes.Buffer
	r := NewRunner(RunnerDeps{
		Service:     service.NewPricerService("ACME", 100, testLogger()),
		Output:      &out,
		Diagnostics: io.Discard,
		Open:        feed.OpenOptions{Stdin: strings.NewReader("1 A a B 10 100\n2 A b B 10.5 100\n")},
		Publisher:   notify.NewPublisher([]notify.ReportSender{rec}, testLogger()),
		Logger:      testLogger(),
	})

	run, err := r.Run(context.Background(), RunConfig{Format: feed.FormatText})
	require.NoError(t, err)
	require.Len(t, rec.deliveries, 2)
	assert.Equal(t, int64(1), rec.deliveries[0].Seq)
	assert.Equal(t, int64(2), rec.deliveries[1].Seq)
	assert.Equal(t, run.ID, rec.deliveries[1].RunID)
	assert.Equal(t, "ACME", rec.deliveries[1].Instrument)
	assert.Equal(t, "2 S 1050.00", rec.deliveries[1].Report.Format())
}

func TestRunnerOutputFailureIsTerminal(t *testing.T) {
	input := strings.Repeat("1 A a B 10 100\n", 1) + "2 R a 100\n"
	run, err := newRunner(100, failingWriter{}, io.Discard, strings.NewReader(input)).Run(context.Background(), RunConfig{
		Format: feed.FormatText,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout closed")
	assert.Equal(t, domain.RunStatusFailed, run.Status)
}

func TestRunnerMissingInput(t *testing.T) {
	run, err := newRunner(100, io.Discard, io.Discard, nil).Run(context.Background(), RunConfig{
		Input:  "testdata/does-not-exist.txt",
		Format: feed.FormatText,
	})
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, int64(0), run.Events)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(100, io.Discard, io.Discard, strings.NewReader("1 A a B 10 100\n")).Run(ctx, RunConfig{
		Format: feed.FormatText,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// stepBus hands out one stream entry per read and records what the runner
// had written by the time each read was made.
type stepBus struct {
	entries  []string
	calls    int
	out      *bytes.Buffer
	diag     *bytes.Buffer
	outSeen  []string
	diagSeen []string
}

func (b *stepBus) Publish(context.Context, string, []byte) error { return nil }

func (b *stepBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *stepBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *stepBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	b.outSeen = append(b.outSeen, b.out.String())
	b.diagSeen = append(b.diagSeen, b.diag.String())
	if b.calls >= len(b.entries) {
		return nil, errors.New("stream exhausted")
	}
	msg := domain.StreamMessage{ID: string(rune('a' + b.calls)), Payload: []byte(b.entries[b.calls])}
	b.calls++
	return []domain.StreamMessage{msg}, nil
}

func TestRunnerFlushesEachLineForStreamInput(t *testing.T) {
	var out, diag bytes.Buffer
	bus := &stepBus{
		entries: []string{"1 A a B 10 100", "2 A a B 10 100", ""},
		out:     &out,
		diag:    &diag,
	}
	r := NewRunner(RunnerDeps{
		Service:     service.NewPricerService("ACME", 100, testLogger()),
		Output:      &out,
		Diagnostics: &diag,
		Open:        feed.OpenOptions{Bus: bus},
		Logger:      testLogger(),
	})

	_, err := r.Run(context.Background(), RunConfig{Input: "redis://events", Format: feed.FormatText})
	require.NoError(t, err)
	require.Len(t, bus.outSeen, 3)
	assert.Equal(t, "1 S 1000.00\n", bus.outSeen[1], "report visible before the next read")
	assert.Contains(t, bus.diagSeen[2], "line: 2 [2 A a B 10 100]:err:")
	assert.Equal(t, "1 S 1000.00\n", out.String())
}
