// Package domain defines the shared data model for the arbitrage pipeline:
// quotes, signals, risk state, execution results, audit records, and the
// interfaces connecting the pipeline to its collaborators.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is one venue's top-of-book view of an instrument, produced by a
// venue connector. Quotes are immutable; at most one per venue per cycle. A
// venue that failed or timed out is simply absent from the cycle's quote set.
type PriceQuote struct {
	Venue      string          `json:"venue"`
	Instrument string          `json:"instrument"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	Mid        decimal.Decimal `json:"mid"`
	// BidSize and AskSize are the notional depth at the best bid/ask.
	// Zero when the venue does not report depth.
	BidSize   decimal.Decimal `json:"bid_size"`
	AskSize   decimal.Decimal `json:"ask_size"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewQuote builds a PriceQuote with the mid derived from bid and ask.
func NewQuote(venue, instrument string, bid, ask decimal.Decimal, ts time.Time) PriceQuote {
	two := decimal.NewFromInt(2)
	return PriceQuote{
		Venue:      venue,
		Instrument: instrument,
		Bid:        bid,
		Ask:        ask,
		Mid:        bid.Add(ask).Div(two),
		Timestamp:  ts,
	}
}
