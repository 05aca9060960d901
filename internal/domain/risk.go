package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel buckets a proposed position by its share of account balance.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskState is the process-wide account and loss-tracking state. It lives for
// the process lifetime, resets at the calendar-day roll, and is owned
// exclusively by the orchestrator loop: only the risk manager and the
// execution layer mutate it, always under the orchestrator's sequential
// control, so no locking is required.
type RiskState struct {
	Balance           decimal.Decimal `json:"balance"`
	DayStartBalance   decimal.Decimal `json:"day_start_balance"`
	OpenExposure      decimal.Decimal `json:"open_exposure"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	DailyLossLimitHit bool            `json:"daily_loss_limit_hit"`
	DayStart          time.Time       `json:"day_start"`
}

// NewRiskState returns a fresh state with the given starting balance, with
// the trading day anchored at now.
func NewRiskState(balance decimal.Decimal, now time.Time) *RiskState {
	return &RiskState{
		Balance:         balance,
		DayStartBalance: balance,
		DayStart:        now.UTC().Truncate(24 * time.Hour),
	}
}

// DailyDrawdownPct returns daily PnL as a (signed) fraction of the
// day-start balance. Zero when the day-start balance is zero.
func (s *RiskState) DailyDrawdownPct() decimal.Decimal {
	if s.DayStartBalance.IsZero() {
		return decimal.Zero
	}
	return s.DailyPnL.Div(s.DayStartBalance)
}

// RiskDecision is the risk manager's verdict on one trade signal. At most one
// exists per cycle and it does not persist beyond the cycle that created it.
type RiskDecision struct {
	Approved     bool            `json:"approved"`
	Reason       string          `json:"reason"`
	PositionSize decimal.Decimal `json:"position_size"`
	RiskLevel    RiskLevel       `json:"risk_level"`
}
