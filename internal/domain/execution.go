package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionMode selects how approved trades are carried out.
type ExecutionMode string

const (
	ModePaper ExecutionMode = "PAPER"
	ModeLive  ExecutionMode = "LIVE"
)

// ParseExecutionMode maps a config string onto an ExecutionMode,
// case-insensitively: config files and the mode-switch API both use
// lowercase "paper"/"live".
func ParseExecutionMode(s string) (ExecutionMode, bool) {
	switch mode := ExecutionMode(strings.ToUpper(s)); mode {
	case ModePaper, ModeLive:
		return mode, true
	default:
		return "", false
	}
}

// ExecutionStatus is the terminal (or rejected) state of an execution.
type ExecutionStatus string

const (
	StatusFilled   ExecutionStatus = "FILLED"
	StatusRejected ExecutionStatus = "REJECTED"
	StatusFailed   ExecutionStatus = "FAILED"
)

// ExecutionResult records the outcome of one executed cycle. It is created by
// the execution layer and immutable once its status is terminal. At most one
// result exists per cycle, and only for cycles whose risk decision was
// approved. FILLED results contribute NetPnL to RiskState.
type ExecutionResult struct {
	TradeID       string          `json:"trade_id"`
	Mode          ExecutionMode   `json:"mode"`
	Instrument    string          `json:"instrument"`
	BuyVenue      string          `json:"buy_venue"`
	SellVenue     string          `json:"sell_venue"`
	Quantity      decimal.Decimal `json:"quantity"`
	BuyFillPrice  decimal.Decimal `json:"buy_fill_price"`
	SellFillPrice decimal.Decimal `json:"sell_fill_price"`
	Fees          decimal.Decimal `json:"fees"`
	NetPnL        decimal.Decimal `json:"net_pnl"`
	LatencyMs     int64           `json:"latency_ms"`
	Status        ExecutionStatus `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	// UnhedgedNotional is non-zero only when the buy leg filled and the
	// sell leg did not: the open directional exposure left behind.
	UnhedgedNotional decimal.Decimal `json:"unhedged_notional"`
	Timestamp        time.Time       `json:"timestamp"`
}

// IsUnhedged reports whether the result left an open unbalanced position
// that the caller must escalate.
func (r ExecutionResult) IsUnhedged() bool {
	return r.Status == StatusFailed && r.UnhedgedNotional.IsPositive()
}
