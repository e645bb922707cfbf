// Package pipeline drives pricing runs: it pulls events from a feed, pushes
// them through the pricer service and delivers what comes out.
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/alanyoungcy/bookpricer/internal/domain"
	"github.com/alanyoungcy/bookpricer/internal/feed"
	"github.com/alanyoungcy/bookpricer/internal/notify"
	"github.com/alanyoungcy/bookpricer/internal/service"
)

// errorBatchSize is how many rejected events are buffered before they are
// written to the error store.
const errorBatchSize = 256

// RunConfig describes one run.
type RunConfig struct {
	Input  string
	Format feed.Format
	// MaxMessages caps the number of input records read, rejected ones
	// included. Zero or negative means no cap.
	MaxMessages int64
}

// RunnerDeps are the collaborators of a Runner. Service, Output and
// Diagnostics are required; the rest are optional.
type RunnerDeps struct {
	Service     *service.PricerService
	Output      io.Writer
	Diagnostics io.Writer
	Open        feed.OpenOptions

	Publisher *notify.Publisher
	Runs      domain.RunStore
	Errors    domain.EventErrorStore
	Archiver  domain.RunArchiver
	Alerter   *notify.Alerter
	Logger    *slog.Logger
}

// Runner executes runs against one PricerService.
type Runner struct {
	deps   RunnerDeps
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(deps RunnerDeps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		deps:   deps,
		logger: logger.With(slog.String("component", "runner")),
	}
}

// runState accumulates what a run produces besides the book itself.
type runState struct {
	run     domain.Run
	out     *notify.TextSender
	diag    *bufio.Writer
	digest  hash.Hash
	live    bool
	records int64
	reports int64

	pendingErrors []domain.EventErrorRecord
	reportLog     bytes.Buffer
	errorLog      bytes.Buffer
}

// Run processes cfg.Input to exhaustion (or cfg.MaxMessages records) and
// returns the finished run record. Rejected events are written to the
// diagnostics sink and never stop the run; the returned error is non-nil
// only for input or output failures and cancellation.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (domain.Run, error) {
	svc := r.deps.Service
	st := &runState{
		run:    domain.NewRun(svc.Instrument(), svc.TargetSize(), sourceName(cfg.Input), string(cfg.Format)),
		out:    notify.NewTextSender(r.deps.Output),
		diag:   bufio.NewWriter(r.deps.Diagnostics),
		digest: mustBlake2b256(),
	}
	logger := r.logger.With(slog.String("run_id", st.run.ID))
	logger.InfoContext(ctx, "run starting",
		slog.String("instrument", st.run.Instrument),
		slog.Int64("target_size", st.run.TargetSize),
		slog.String("source", st.run.Source),
		slog.String("format", st.run.Format),
		slog.Int64("max_messages", cfg.MaxMessages),
	)

	if r.deps.Runs != nil {
		if err := r.deps.Runs.Create(ctx, st.run); err != nil {
			logger.WarnContext(ctx, "run record not created", slog.String("error", err.Error()))
		}
	}

	runErr := r.process(ctx, cfg, st)

	// Output is flushed on every path so a failed run still delivers what it
	// produced.
	if err := st.out.Flush(ctx); err != nil && runErr == nil {
		runErr = err
	}
	if err := st.diag.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("pipeline: flush diagnostics: %w", err)
	}
	r.finish(ctx, st, runErr, logger)
	return st.run, runErr
}

func (r *Runner) process(ctx context.Context, cfg RunConfig, st *runState) error {
	opts := r.deps.Open
	opts.Format = cfg.Format
	if opts.Logger == nil {
		opts.Logger = r.logger
	}
	src, err := feed.Open(ctx, cfg.Input, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			r.logger.WarnContext(ctx, "close source failed", slog.String("error", cerr.Error()))
		}
	}()
	if feed.Live(cfg.Input) {
		st.live = true
		st.out.FlushEachLine()
	}

	for cfg.MaxMessages <= 0 || st.records < cfg.MaxMessages {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		st.records++
		st.digest.Write(rec.Bytes)
		if cfg.Format != feed.FormatBinary {
			st.digest.Write([]byte{'\n'})
		}

		rep, ok, perr := r.deps.Service.Process(ctx, rec.Event)
		if perr != nil {
			if err := r.reject(ctx, st, rec, perr); err != nil {
				return err
			}
			continue
		}
		if ok {
			if err := r.emit(ctx, st, rep); err != nil {
				return err
			}
		}
	}
	return nil
}

// emit delivers one report to stdout and then to the optional sinks.
func (r *Runner) emit(ctx context.Context, st *runState, rep domain.Report) error {
	st.reports++
	d := notify.Delivery{
		RunID:      st.run.ID,
		Instrument: st.run.Instrument,
		Seq:        st.reports,
		Report:     rep,
	}
	if err := st.out.Send(ctx, d); err != nil {
		return err
	}
	if r.deps.Archiver != nil {
		st.reportLog.Write(rep.AppendFormat(nil))
		st.reportLog.WriteByte('\n')
	}
	if r.deps.Publisher != nil {
		// Secondary sinks are best effort; the publisher logs failures.
		_ = r.deps.Publisher.Publish(ctx, d)
	}
	return nil
}

// reject writes the diagnostic line for a rejected record and queues it for
// the error store.
func (r *Runner) reject(ctx context.Context, st *runState, rec feed.Record, perr error) error {
	line := fmt.Sprintf("line: %d [%s]:err: %s\n", rec.Seq, rec.Raw, perr)
	if _, err := st.diag.WriteString(line); err != nil {
		return fmt.Errorf("pipeline: write diagnostics: %w", err)
	}
	if st.live {
		if err := st.diag.Flush(); err != nil {
			return fmt.Errorf("pipeline: flush diagnostics: %w", err)
		}
	}
	if r.deps.Archiver != nil {
		st.errorLog.WriteString(line)
	}
	if r.deps.Errors == nil {
		return nil
	}

	kind, detail := "unknown", perr.Error()
	if ee, ok := domain.AsEventError(perr); ok {
		kind, detail = ee.Kind(), ee.Detail
	}
	st.pendingErrors = append(st.pendingErrors, domain.EventErrorRecord{
		RunID:     st.run.ID,
		Line:      rec.Seq,
		Timestamp: rec.Event.Timestamp,
		Kind:      kind,
		Detail:    detail,
		Raw:       rec.Raw,
		CreatedAt: time.Now().UTC(),
	})
	if len(st.pendingErrors) >= errorBatchSize {
		r.flushErrors(ctx, st)
	}
	return nil
}

func (r *Runner) flushErrors(ctx context.Context, st *runState) {
	if r.deps.Errors == nil || len(st.pendingErrors) == 0 {
		return
	}
	if err := r.deps.Errors.InsertBatch(ctx, st.pendingErrors); err != nil {
		r.logger.WarnContext(ctx, "event errors not stored",
			slog.Int("count", len(st.pendingErrors)),
			slog.String("error", err.Error()),
		)
	}
	st.pendingErrors = st.pendingErrors[:0]
}

// finish stamps the run, flushes the secondary sinks and archives the run.
// Failures here are logged; they never change the run's outcome.
func (r *Runner) finish(ctx context.Context, st *runState, runErr error, logger *slog.Logger) {
	// Persistence should complete even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	r.flushErrors(ctx, st)
	if r.deps.Publisher != nil {
		if err := r.deps.Publisher.Flush(ctx); err != nil {
			logger.WarnContext(ctx, "report sinks not flushed", slog.String("error", err.Error()))
		}
	}

	stats := r.deps.Service.Snapshot().Stats
	st.run.Events = st.records
	st.run.Reports = st.reports
	st.run.Rejected = stats.Rejected
	st.run.RejectKinds = stats.RejectKinds
	st.run.InputDigest = hex.EncodeToString(st.digest.Sum(nil))
	st.run.Finish(runErr)

	if r.deps.Archiver != nil {
		prefix, err := r.deps.Archiver.ArchiveRun(ctx, domain.RunArtifacts{
			Run:     st.run,
			Reports: st.reportLog.Bytes(),
			Errors:  st.errorLog.Bytes(),
		})
		if err != nil {
			logger.WarnContext(ctx, "run not archived", slog.String("error", err.Error()))
		} else {
			if st.run.Meta == nil {
				st.run.Meta = map[string]string{}
			}
			st.run.Meta["archive"] = prefix
		}
	}
	if r.deps.Runs != nil {
		if err := r.deps.Runs.Update(ctx, st.run); err != nil {
			logger.WarnContext(ctx, "run record not updated", slog.String("error", err.Error()))
		}
	}
	if r.deps.Alerter != nil {
		if err := r.deps.Alerter.RunFinished(ctx, &st.run); err != nil {
			logger.WarnContext(ctx, "run alert failed", slog.String("error", err.Error()))
		}
	}

	attrs := []any{
		slog.String("status", string(st.run.Status)),
		slog.Int64("events", st.run.Events),
		slog.Int64("reports", st.run.Reports),
		slog.Int64("rejected", st.run.Rejected),
		slog.String("input_digest", st.run.InputDigest),
		slog.Duration("elapsed", st.run.Duration()),
	}
	if runErr != nil {
		logger.ErrorContext(ctx, "run failed", append(attrs, slog.String("error", runErr.Error()))...)
		return
	}
	logger.InfoContext(ctx, "run finished", attrs...)
}

func sourceName(input string) string {
	if input == "" || input == "-" {
		return "stdin"
	}
	return input
}

func mustBlake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only a key longer than 64 bytes is rejected.
		panic(err)
	}
	return h
}
