package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// RunHandler serves persisted runs with their reports and rejected events.
type RunHandler struct {
	runs    domain.RunStore
	reports domain.ReportStore
	errors  domain.EventErrorStore
	logger  *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(runs domain.RunStore, reports domain.ReportStore, errs domain.EventErrorStore, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, reports: reports, errors: errs, logger: logger}
}

// ListRuns returns runs newest first.
// GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run with its error counts.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	counts, err := h.errors.CountByKind(r.Context(), run.ID)
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "error_counts": counts})
}

// ListReports returns a run's reports in emission order.
// GET /api/runs/{id}/reports
func (h *RunHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.ListByRun(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	if reports == nil {
		reports = []domain.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// ListErrors returns a run's rejected events in input order.
// GET /api/runs/{id}/errors
func (h *RunHandler) ListErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := h.errors.ListByRun(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	if errs == nil {
		errs = []domain.EventErrorRecord{}
	}
	writeJSON(w, http.StatusOK, errs)
}
