// Package risk implements the risk manager: hard pre-trade vetoes (daily
// loss limit, consecutive-loss circuit breaker, exposure cap), position
// sizing from a fixed capital fraction, and the daily halt state machine.
package risk

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Config holds the validated risk limits. All fractions are of account
// balance; MaxPositionAbs is in base units of the instrument.
type Config struct {
	CapitalPctPerTrade      decimal.Decimal
	MaxPositionAbs          decimal.Decimal
	MaxExposurePct          decimal.Decimal
	MaxDailyLossPct         decimal.Decimal
	CircuitBreakerThreshold int
	// Risk-level bucketing thresholds on position notional / balance.
	LowRiskPct    decimal.Decimal
	MediumRiskPct decimal.Decimal
}

// Manager assesses trade signals against the current RiskState. Assess is
// read-only on state; mutation happens when the execution layer commits an
// outcome and when the orchestrator rolls the trading day.
type Manager struct {
	cfg    Config
	audit  domain.AuditSink
	logger *slog.Logger
}

// NewManager creates a risk manager with the given limits.
func NewManager(cfg Config, audit domain.AuditSink, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		audit:  audit,
		logger: logger.With(slog.String("component", "risk_manager")),
	}
}

// Assess applies the hard vetoes in order and, when all pass, sizes the
// position. Each veto short-circuits with approved=false and a
// human-readable reason.
func (m *Manager) Assess(ctx context.Context, sig domain.TradeSignal, state *domain.RiskState) domain.RiskDecision {
	var dec domain.RiskDecision

	size, notional := m.size(sig, state)

	switch {
	case state.DailyLossLimitHit:
		dec = reject("daily loss limit reached", domain.RiskLevelHigh)
	case state.ConsecutiveLosses >= m.cfg.CircuitBreakerThreshold:
		dec = reject("circuit breaker engaged", domain.RiskLevelHigh)
	case state.OpenExposure.Add(notional).GreaterThan(m.cfg.MaxExposurePct.Mul(state.Balance)):
		dec = reject("exposure limit", domain.RiskLevelHigh)
	case !sig.IsTrade():
		dec = reject("no signal", domain.RiskLevelLow)
	case !size.IsPositive():
		dec = reject("position size rounds to zero", domain.RiskLevelLow)
	default:
		dec = domain.RiskDecision{
			Approved:     true,
			Reason:       "within risk limits",
			PositionSize: size,
			RiskLevel:    m.level(notional, state.Balance),
		}
	}

	m.logDecision(ctx, dec, state)
	return dec
}

// size derives the proposed quantity and its notional from the signal and
// state: a fixed capital fraction of balance, capped by the absolute
// position limit and by the balance itself, floored at zero. A HOLD signal
// proposes nothing.
func (m *Manager) size(sig domain.TradeSignal, state *domain.RiskState) (qty, notional decimal.Decimal) {
	if !sig.IsTrade() || !sig.BuyPrice.IsPositive() || !state.Balance.IsPositive() {
		return decimal.Zero, decimal.Zero
	}

	alloc := m.cfg.CapitalPctPerTrade.Mul(state.Balance)
	qty = alloc.Div(sig.BuyPrice)
	if qty.GreaterThan(m.cfg.MaxPositionAbs) {
		qty = m.cfg.MaxPositionAbs
	}
	// Never propose more than the balance can pay for.
	maxAffordable := state.Balance.Div(sig.BuyPrice)
	if qty.GreaterThan(maxAffordable) {
		qty = maxAffordable
	}
	if qty.IsNegative() {
		qty = decimal.Zero
	}
	return qty, qty.Mul(sig.BuyPrice)
}

// level buckets position notional as a share of balance.
func (m *Manager) level(notional, balance decimal.Decimal) domain.RiskLevel {
	if !balance.IsPositive() {
		return domain.RiskLevelHigh
	}
	ratio := notional.Div(balance)
	switch {
	case ratio.LessThanOrEqual(m.cfg.LowRiskPct):
		return domain.RiskLevelLow
	case ratio.LessThanOrEqual(m.cfg.MediumRiskPct):
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelHigh
	}
}

// CircuitBreakerTripped reports whether the consecutive-loss counter has
// reached the configured threshold.
func (m *Manager) CircuitBreakerTripped(state *domain.RiskState) bool {
	return state.ConsecutiveLosses >= m.cfg.CircuitBreakerThreshold
}

// UpdateHaltFlags latches the daily loss limit once the day's drawdown
// reaches the configured limit. The flag stays set until the calendar day
// rolls; it never self-heals on a winning trade.
func (m *Manager) UpdateHaltFlags(state *domain.RiskState) {
	if state.DailyLossLimitHit {
		return
	}
	if state.DailyDrawdownPct().LessThanOrEqual(m.cfg.MaxDailyLossPct.Neg()) {
		state.DailyLossLimitHit = true
		m.logger.Warn("daily loss limit reached, halting new trades",
			slog.String("daily_pnl", state.DailyPnL.String()),
			slog.String("day_start_balance", state.DayStartBalance.String()),
		)
	}
}

// RollDay resets the daily counters, the loss-limit latch, and the circuit
// breaker when now falls on a later calendar day than state.DayStart. It
// returns true when a roll happened.
func (m *Manager) RollDay(state *domain.RiskState, now time.Time) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.After(state.DayStart) {
		return false
	}
	state.DayStart = day
	state.DayStartBalance = state.Balance
	state.DailyPnL = decimal.Zero
	state.DailyLossLimitHit = false
	state.ConsecutiveLosses = 0
	m.logger.Info("trading day rolled",
		slog.Time("day_start", day),
		slog.String("balance", state.Balance.String()),
	)
	return true
}

// ResetCircuitBreaker clears the consecutive-loss counter. This is the
// manual override path; the only other reset is the daily roll.
func (m *Manager) ResetCircuitBreaker(state *domain.RiskState) {
	if state.ConsecutiveLosses > 0 {
		m.logger.Info("circuit breaker manually reset",
			slog.Int("consecutive_losses", state.ConsecutiveLosses),
		)
	}
	state.ConsecutiveLosses = 0
}

func reject(reason string, level domain.RiskLevel) domain.RiskDecision {
	return domain.RiskDecision{
		Approved:     false,
		Reason:       reason,
		PositionSize: decimal.Zero,
		RiskLevel:    level,
	}
}

func (m *Manager) logDecision(ctx context.Context, dec domain.RiskDecision, state *domain.RiskState) {
	data := map[string]any{
		"approved":           dec.Approved,
		"reason":             dec.Reason,
		"position_size":      dec.PositionSize.String(),
		"risk_level":         string(dec.RiskLevel),
		"balance":            state.Balance.String(),
		"open_exposure":      state.OpenExposure.String(),
		"consecutive_losses": float64(state.ConsecutiveLosses),
		"daily_pnl":          state.DailyPnL.String(),
	}
	if err := m.audit.Log(ctx, domain.AuditRiskDecision, data); err != nil {
		m.logger.Warn("audit write failed", slog.String("error", err.Error()))
	}
}
