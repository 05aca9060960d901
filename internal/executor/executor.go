// Package executor turns approved trade intents into execution results. Two
// implementations exist behind one interface: a paper simulator and a live
// two-leg placer with retry and partial-failure handling. The risk manager
// and strategy engine are fully unaware of which one runs.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Executor performs one approved trade intent and returns the result. The
// passed RiskState is mutated on completion (PnL, balance, loss counter,
// open exposure) under the orchestrator's sequential control.
type Executor interface {
	Mode() domain.ExecutionMode
	Execute(ctx context.Context, sig domain.TradeSignal, dec domain.RiskDecision, state *domain.RiskState) (domain.ExecutionResult, error)
}

// tradeIDs issues unique, monotonically increasing trade IDs. The prefix
// carries the mode, the UTC start date and a per-run token, e.g.
// PAPER_20260901_1c9f40ae_0001, so IDs from a restarted process never
// collide with rows persisted by an earlier run.
type tradeIDs struct {
	prefix string
	n      atomic.Int64
}

func newTradeIDs(mode domain.ExecutionMode) *tradeIDs {
	run := uuid.NewString()[:8]
	return &tradeIDs{prefix: fmt.Sprintf("%s_%s_%s", mode, time.Now().UTC().Format("20060102"), run)}
}

func (t *tradeIDs) next() string {
	return fmt.Sprintf("%s_%04d", t.prefix, t.n.Add(1))
}

// applyFill commits a FILLED result to the risk state: PnL and balance move
// by net PnL, and the consecutive-loss counter resets on a win or increments
// otherwise. Non-FILLED results leave these fields untouched.
func applyFill(state *domain.RiskState, res domain.ExecutionResult) {
	if res.Status != domain.StatusFilled {
		return
	}
	state.DailyPnL = state.DailyPnL.Add(res.NetPnL)
	state.Balance = state.Balance.Add(res.NetPnL)
	if res.NetPnL.IsPositive() {
		state.ConsecutiveLosses = 0
	} else {
		state.ConsecutiveLosses++
	}
}

// auditCycle writes the TRADE_CYCLE record carrying the full
// signal/decision/result triple for the cycle.
func auditCycle(ctx context.Context, sink domain.AuditSink, logger *slog.Logger, sig domain.TradeSignal, dec domain.RiskDecision, res domain.ExecutionResult) {
	data := map[string]any{
		"signal":   toMap(sig),
		"decision": toMap(dec),
		"result":   toMap(res),
	}
	if err := sink.Log(ctx, domain.AuditTradeCycle, data); err != nil {
		logger.Warn("audit write failed", slog.String("error", err.Error()))
	}
}

// toMap round-trips a struct through JSON so audit payloads stay plain maps
// that survive JSONL encoding unchanged.
func toMap(v any) map[string]any {
	buf, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"marshal_error": err.Error()}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(buf, &out); err != nil {
		return map[string]any{"unmarshal_error": err.Error()}
	}
	return out
}
