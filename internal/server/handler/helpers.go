// Package handler implements the HTTP endpoints of the pricer API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/bookpricer/internal/domain"
)

const (
	defaultLevels = 10
	maxLevels     = 500
)

// writeJSON marshals v and writes it with status. A marshal failure becomes a
// plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a store error to 404 or 500.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	logger.ErrorContext(r.Context(), "store query failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// parseListOpts reads limit (default 50, max 500) and offset.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, 500)
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}

// parseLevels reads the levels query parameter.
func parseLevels(r *http.Request) (int, error) {
	v := r.URL.Query().Get("levels")
	if v == "" {
		return defaultLevels, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("levels must be a positive integer")
	}
	return min(n, maxLevels), nil
}

// parseSide accepts buy, sell, bids, asks, B or S in any case.
func parseSide(v string) (domain.Side, bool) {
	switch v {
	case "buy", "BUY", "bids", "B", "b":
		return domain.SideBuy, true
	case "sell", "SELL", "asks", "S", "s":
		return domain.SideSell, true
	}
	return 0, false
}
