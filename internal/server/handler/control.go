package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Pipeline is the orchestrator surface the control handler needs. Requests
// are applied at the next cycle boundary, never mid-cycle.
type Pipeline interface {
	Mode() domain.ExecutionMode
	Snapshot() domain.RiskState
	RequestMode(mode domain.ExecutionMode)
	RequestCircuitBreakerReset(requester string)
}

// ControlHandler exposes operator controls over the running pipeline.
type ControlHandler struct {
	pipe   Pipeline
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler for the given pipeline.
func NewControlHandler(pipe Pipeline, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		pipe:   pipe,
		logger: logHandler(logger, "control"),
	}
}

// Status reports the active execution mode and the risk state as of the last
// completed cycle.
// GET /api/status
func (h *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.pipe.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":                 string(h.pipe.Mode()),
		"balance":              snap.Balance.String(),
		"day_start_balance":    snap.DayStartBalance.String(),
		"daily_pnl":            snap.DailyPnL.String(),
		"open_exposure":        snap.OpenExposure.String(),
		"consecutive_losses":   snap.ConsecutiveLosses,
		"daily_loss_limit_hit": snap.DailyLossLimitHit,
	})
}

// SwitchMode schedules an execution-mode switch for the next cycle boundary.
// POST /api/mode {"mode": "paper"|"live"}
func (h *ControlHandler) SwitchMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode, ok := domain.ParseExecutionMode(req.Mode)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q (valid: paper, live)", req.Mode))
		return
	}

	h.pipe.RequestMode(mode)
	h.logger.InfoContext(r.Context(), "mode switch requested", slog.String("mode", req.Mode))

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "scheduled",
		"mode":   string(mode),
	})
}

// ResetCircuitBreaker schedules a manual circuit-breaker reset for the next
// cycle boundary.
// POST /api/circuit-breaker/reset {"requester": "..."}
func (h *ControlHandler) ResetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Requester string `json:"requester"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Requester == "" {
		writeError(w, http.StatusBadRequest, "requester is required")
		return
	}

	h.pipe.RequestCircuitBreakerReset(req.Requester)
	h.logger.InfoContext(r.Context(), "circuit breaker reset requested",
		slog.String("requester", req.Requester),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "scheduled",
	})
}
