package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookpricer/internal/domain"
	"github.com/alanyoungcy/bookpricer/internal/service"
)

// BookHandler serves aggregated depth of the live book and the cached
// results of any instrument.
type BookHandler struct {
	pricer *service.PricerService
	income domain.IncomeCache
	depth  domain.DepthCache
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler. The caches may be nil, in which case
// the instrument endpoints answer 503.
func NewBookHandler(pricer *service.PricerService, income domain.IncomeCache, depth domain.DepthCache, logger *slog.Logger) *BookHandler {
	return &BookHandler{pricer: pricer, income: income, depth: depth, logger: logger}
}

type depthResponse struct {
	Instrument string              `json:"instrument"`
	Side       domain.Side         `json:"side"`
	Timestamp  int64               `json:"timestamp"`
	Levels     []domain.DepthLevel `json:"levels"`
}

// GetSide returns up to ?levels= aggregated price levels of one side, best
// price first.
// GET /api/book/{side}
func (h *BookHandler) GetSide(w http.ResponseWriter, r *http.Request) {
	side, ok := parseSide(r.PathValue("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	levels, err := parseLevels(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.pricer.Depth(levels)
	resp := depthResponse{
		Instrument: snap.Instrument,
		Side:       side,
		Timestamp:  snap.Timestamp,
		Levels:     snap.Bids,
	}
	if side == domain.SideSell {
		resp.Levels = snap.Asks
	}
	if resp.Levels == nil {
		resp.Levels = []domain.DepthLevel{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetIncome returns the latest cached report per side of an instrument.
// GET /api/instruments/{instrument}/income
func (h *BookHandler) GetIncome(w http.ResponseWriter, r *http.Request) {
	if h.income == nil {
		writeError(w, http.StatusServiceUnavailable, "income cache is not configured")
		return
	}
	instrument := r.PathValue("instrument")

	out := make(map[string]domain.Report, 2)
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		rep, err := h.income.GetLatest(r.Context(), instrument, side)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			writeStoreError(w, h.logger, r, err)
			return
		}
		out[side.String()] = rep
	}
	if len(out) == 0 {
		writeError(w, http.StatusNotFound, "no reports for "+instrument)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instrument": instrument, "latest": out})
}

// GetDepth returns the last depth snapshot published for an instrument.
// GET /api/instruments/{instrument}/depth
func (h *BookHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	if h.depth == nil {
		writeError(w, http.StatusServiceUnavailable, "depth cache is not configured")
		return
	}
	snap, err := h.depth.GetDepth(r.Context(), r.PathValue("instrument"))
	if err != nil {
		writeStoreError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
