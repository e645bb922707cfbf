package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/bookpricer/internal/service"
)

// StatusHandler reports the pricer's mode, uptime and counters.
type StatusHandler struct {
	mode      string
	pricer    *service.PricerService
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, pricer *service.PricerService, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, pricer: pricer, startedAt: startedAt}
}

// GetStatus returns the service snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"pricer":         h.pricer.Snapshot(),
	})
}
