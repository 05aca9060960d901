package domain

import "github.com/shopspring/decimal"

// Decision is the strategy engine's verdict for one cycle.
type Decision string

const (
	DecisionTrade Decision = "TRADE"
	DecisionHold  Decision = "HOLD"
)

// TradeSignal is the strategy engine's output for one cycle. Exactly one
// signal exists per cycle and it is never mutated after creation. On HOLD the
// venue and price fields are zero-valued and Reason explains why.
type TradeSignal struct {
	Instrument string          `json:"instrument"`
	Decision   Decision        `json:"decision"`
	SpreadPct  decimal.Decimal `json:"spread_pct"`
	Threshold  decimal.Decimal `json:"threshold_pct"`
	Reason     string          `json:"reason"`
	BuyVenue   string          `json:"buy_venue,omitempty"`
	SellVenue  string          `json:"sell_venue,omitempty"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
}

// IsTrade reports whether the signal requests execution.
func (s TradeSignal) IsTrade() bool {
	return s.Decision == DecisionTrade
}
