package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// TradeHandler serves read-only views over the persisted execution history.
type TradeHandler struct {
	store  domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler backed by the given store.
func NewTradeHandler(store domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		store:  store,
		logger: logHandler(logger, "trades"),
	}
}

// ListTrades returns recent execution results, newest first. Supports
// limit/offset pagination plus an optional status filter.
// GET /api/trades
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	if v := r.URL.Query().Get("status"); v != "" {
		opts.Status = domain.ExecutionStatus(v)
	}

	results, err := h.store.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": results,
		"count":  len(results),
	})
}

// GetTrade returns a single execution result by trade ID.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "trade id is required")
		return
	}

	res, err := h.store.GetByTradeID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get trade failed",
			slog.String("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// TradeStats returns per-status counts over the full execution history.
// GET /api/trades/stats
func (h *TradeHandler) TradeStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]int64, 3)
	for _, status := range []domain.ExecutionStatus{
		domain.StatusFilled,
		domain.StatusRejected,
		domain.StatusFailed,
	} {
		n, err := h.store.CountByStatus(r.Context(), status)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "count trades failed",
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to count trades")
			return
		}
		stats[string(status)] = n
	}

	writeJSON(w, http.StatusOK, stats)
}
