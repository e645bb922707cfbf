package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks the lifecycle of one pricing run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// Run describes one pass over an input stream for a single instrument.
type Run struct {
	ID          string            `json:"id"`
	Instrument  string            `json:"instrument"`
	TargetSize  int64             `json:"target_size"`
	Source      string            `json:"source"`
	Format      string            `json:"format"`
	InputDigest string            `json:"input_digest,omitempty"`
	Events      int64             `json:"events"`
	Reports     int64             `json:"reports"`
	Rejected    int64             `json:"rejected"`
	RejectKinds map[string]int64  `json:"reject_kinds,omitempty"`
	Status      RunStatus         `json:"status"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// NewRun starts a run record with a fresh id.
func NewRun(instrument string, targetSize int64, source, format string) Run {
	return Run{
		ID:          uuid.NewString(),
		Instrument:  instrument,
		TargetSize:  targetSize,
		Source:      source,
		Format:      format,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
		RejectKinds: map[string]int64{},
	}
}

// Finish stamps the terminal status. A nil err marks the run finished.
func (r *Run) Finish(err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusFinished
}

// Duration returns the elapsed wall time of the run so far.
func (r Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// EventErrorRecord is a persisted rejected event.
type EventErrorRecord struct {
	RunID     string    `json:"run_id"`
	Line      int64     `json:"line"`
	Timestamp int64     `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Raw       string    `json:"raw"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRecord is a persisted report tagged with its run.
type ReportRecord struct {
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"`
	Instrument string `json:"instrument"`
	Report
}
