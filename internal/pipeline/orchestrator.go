// Package pipeline drives the cyclic decision loop: fetch quotes, evaluate,
// assess, execute, persist. Cycles are strictly sequential and the
// orchestrator owns the RiskState; no other goroutine touches it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/executor"
	"github.com/alanyoungcy/arbot/internal/feed"
	"github.com/alanyoungcy/arbot/internal/risk"
	"github.com/alanyoungcy/arbot/internal/strategy"
)

// Alerter is the escalation channel for conditions operators must see
// (unhedged legs, circuit-breaker trips, daily-loss halts). Implemented by
// the notify package.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Alert event types emitted by the orchestrator.
const (
	EventUnhedgedLeg    = "unhedged_leg"
	EventCircuitBreaker = "circuit_breaker"
	EventDailyLossHalt  = "daily_loss_halt"
)

// Config wires an Orchestrator.
type Config struct {
	Collector  *feed.Collector
	Engine     *strategy.Engine
	Risk       *risk.Manager
	Executors  []executor.Executor
	State      *domain.RiskState
	Trades     domain.TradeStore // optional
	Bus        domain.ResultBus  // optional
	Alerts     Alerter           // optional
	Instrument string
	Interval   time.Duration
	Mode       domain.ExecutionMode
	Logger     *slog.Logger
}

// Orchestrator runs the decision pipeline. Mode switches and circuit-breaker
// resets requested while a cycle is running are applied at the next cycle
// boundary, never mid-cycle.
type Orchestrator struct {
	collector  *feed.Collector
	engine     *strategy.Engine
	risk       *risk.Manager
	executors  map[domain.ExecutionMode]executor.Executor
	state      *domain.RiskState
	trades     domain.TradeStore
	bus        domain.ResultBus
	alerts     Alerter
	instrument string
	interval   time.Duration
	logger     *slog.Logger

	mu            sync.Mutex
	mode          domain.ExecutionMode
	pendingMode   *domain.ExecutionMode
	pendingCBName string // non-empty requests a circuit breaker reset, value is the requester
	snap          domain.RiskState
}

// NewOrchestrator creates an orchestrator from cfg.
func NewOrchestrator(cfg Config) *Orchestrator {
	execs := make(map[domain.ExecutionMode]executor.Executor, len(cfg.Executors))
	for _, ex := range cfg.Executors {
		execs[ex.Mode()] = ex
	}
	return &Orchestrator{
		collector:  cfg.Collector,
		engine:     cfg.Engine,
		risk:       cfg.Risk,
		executors:  execs,
		state:      cfg.State,
		trades:     cfg.Trades,
		bus:        cfg.Bus,
		alerts:     cfg.Alerts,
		instrument: cfg.Instrument,
		interval:   cfg.Interval,
		mode:       cfg.Mode,
		snap:       *cfg.State,
		logger:     cfg.Logger.With(slog.String("component", "orchestrator")),
	}
}

// RequestMode asks for an execution-mode switch. The switch is applied at
// the next cycle boundary; it is never silently ignored and never takes
// effect mid-cycle.
func (o *Orchestrator) RequestMode(mode domain.ExecutionMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingMode = &mode
	o.logger.Info("mode switch requested", slog.String("mode", string(mode)))
}

// RequestCircuitBreakerReset schedules a manual circuit-breaker reset for
// the next cycle boundary.
func (o *Orchestrator) RequestCircuitBreakerReset(requester string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingCBName = requester
	o.logger.Info("circuit breaker reset requested", slog.String("requester", requester))
}

// Mode returns the currently active execution mode.
func (o *Orchestrator) Mode() domain.ExecutionMode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// Snapshot returns a copy of the risk state as of the last completed cycle.
// Safe to call from other goroutines (status endpoints).
func (o *Orchestrator) Snapshot() domain.RiskState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Run executes cycles on the configured interval until ctx is cancelled.
// The stop signal is honored only at cycle boundaries: a cycle whose risk
// decision was approved always reaches a terminal execution state before
// shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.String("instrument", o.instrument),
		slog.Duration("interval", o.interval),
		slog.String("mode", string(o.Mode())),
	)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped",
				slog.String("balance", o.state.Balance.String()),
				slog.String("daily_pnl", o.state.DailyPnL.String()),
			)
			return ctx.Err()
		default:
		}

		o.runCycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped",
				slog.String("balance", o.state.Balance.String()),
				slog.String("daily_pnl", o.state.DailyPnL.String()),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes exactly one cycle. Exposed for callers that drive the
// loop themselves (tests, one-shot mode).
func (o *Orchestrator) RunCycle(ctx context.Context) {
	o.runCycle(ctx)
}

func (o *Orchestrator) runCycle(ctx context.Context) {
	defer func() {
		o.mu.Lock()
		o.snap = *o.state
		o.mu.Unlock()
	}()

	mode := o.applyBoundaryRequests()

	quotes := o.collector.Collect(ctx, o.instrument)

	sig, err := o.engine.Evaluate(ctx, quotes)
	if err != nil {
		// Data error: recovered locally as a HOLD, the cycle simply ends.
		o.logger.Warn("strategy evaluation degraded",
			slog.String("reason", sig.Reason),
			slog.String("error", err.Error()),
		)
		return
	}

	dec := o.risk.Assess(ctx, sig, o.state)
	if !dec.Approved {
		o.logger.Debug("trade not approved", slog.String("reason", dec.Reason))
		return
	}

	ex, ok := o.executors[mode]
	if !ok {
		o.logger.Error("no executor for mode", slog.String("mode", string(mode)))
		return
	}

	prevLosses := o.state.ConsecutiveLosses
	prevHalt := o.state.DailyLossLimitHit

	// Once approved, the trade is carried to a terminal state even if a
	// stop arrives mid-execution.
	execCtx := context.WithoutCancel(ctx)
	res, execErr := ex.Execute(execCtx, sig, dec, o.state)
	if execErr != nil {
		o.logger.Error("execution failed",
			slog.String("trade_id", res.TradeID),
			slog.String("status", string(res.Status)),
			slog.String("error", execErr.Error()),
		)
	}

	o.risk.UpdateHaltFlags(o.state)
	o.publish(execCtx, res)
	o.escalate(execCtx, res, prevLosses, prevHalt)
}

// applyBoundaryRequests applies pending mode switches and circuit-breaker
// resets, then rolls the trading day if the calendar moved on.
func (o *Orchestrator) applyBoundaryRequests() domain.ExecutionMode {
	o.mu.Lock()
	if o.pendingMode != nil {
		o.logger.Info("execution mode switched",
			slog.String("from", string(o.mode)),
			slog.String("to", string(*o.pendingMode)),
		)
		o.mode = *o.pendingMode
		o.pendingMode = nil
	}
	cbRequester := o.pendingCBName
	o.pendingCBName = ""
	mode := o.mode
	o.mu.Unlock()

	if cbRequester != "" {
		o.risk.ResetCircuitBreaker(o.state)
	}
	o.risk.RollDay(o.state, time.Now())
	return mode
}

// publish persists and broadcasts a terminal result. Failures are logged,
// never fatal: the audit trail is the source of truth.
func (o *Orchestrator) publish(ctx context.Context, res domain.ExecutionResult) {
	if o.trades != nil {
		if err := o.trades.SaveResult(ctx, res); err != nil {
			o.logger.Warn("trade store write failed",
				slog.String("trade_id", res.TradeID),
				slog.String("error", err.Error()),
			)
		}
	}
	if o.bus != nil {
		if err := o.bus.PublishResult(ctx, res); err != nil {
			o.logger.Warn("result publish failed",
				slog.String("trade_id", res.TradeID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// escalate raises operator alerts for partial failures and newly tripped
// halt conditions.
func (o *Orchestrator) escalate(ctx context.Context, res domain.ExecutionResult, prevLosses int, prevHalt bool) {
	if o.alerts == nil {
		return
	}

	if res.IsUnhedged() {
		msg := fmt.Sprintf("trade %s: buy leg filled on %s, sell leg failed on %s; open notional %s",
			res.TradeID, res.BuyVenue, res.SellVenue, res.UnhedgedNotional.StringFixed(2))
		if err := o.alerts.Notify(ctx, EventUnhedgedLeg, "Unhedged leg", msg); err != nil {
			o.logger.Warn("alert failed", slog.String("error", err.Error()))
		}
	}

	if prevLosses < o.state.ConsecutiveLosses && o.risk.CircuitBreakerTripped(o.state) {
		msg := fmt.Sprintf("%d consecutive losing trades, new approvals halted until reset", o.state.ConsecutiveLosses)
		if err := o.alerts.Notify(ctx, EventCircuitBreaker, "Circuit breaker tripped", msg); err != nil {
			o.logger.Warn("alert failed", slog.String("error", err.Error()))
		}
	}

	if !prevHalt && o.state.DailyLossLimitHit {
		msg := fmt.Sprintf("daily PnL %s breached the loss limit; trading halted for the rest of the day",
			o.state.DailyPnL.StringFixed(2))
		if err := o.alerts.Notify(ctx, EventDailyLossHalt, "Daily loss limit reached", msg); err != nil {
			o.logger.Warn("alert failed", slog.String("error", err.Error()))
		}
	}
}
