// Package strategy implements the arbitrage strategy engine: it consumes one
// cycle's simultaneous venue quotes for an instrument, computes the best
// cross-venue spread, and decides trade / no-trade against a cost-aware
// threshold.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// CostModel carries the per-trade cost assumptions used to derive the
// break-even threshold. All values are fractions (0.001 = 0.1%).
type CostModel struct {
	FeeRate   decimal.Decimal
	Slippage  decimal.Decimal
	MinSpread decimal.Decimal
}

// Threshold returns the break-even cost: fees and slippage on both legs plus
// the configured minimum spread margin. It is monotonically non-decreasing
// in each input.
func (c CostModel) Threshold() decimal.Decimal {
	two := decimal.NewFromInt(2)
	return c.FeeRate.Mul(two).Add(c.Slippage.Mul(two)).Add(c.MinSpread)
}

// Engine evaluates quote sets into trade signals. Evaluate has no hidden
// state: replaying the same quotes yields an identical signal.
type Engine struct {
	cost   CostModel
	audit  domain.AuditSink
	logger *slog.Logger
}

// NewEngine creates an engine with the given cost model.
func NewEngine(cost CostModel, audit domain.AuditSink, logger *slog.Logger) *Engine {
	return &Engine{
		cost:   cost,
		audit:  audit,
		logger: logger.With(slog.String("component", "strategy_engine")),
	}
}

// candidate is one ordered venue pair under consideration.
type candidate struct {
	buy, sell domain.PriceQuote
	spread    decimal.Decimal
}

// depth is the notional depth limiting the pair: the smaller of the buy-side
// ask depth and the sell-side bid depth. Zero when either venue does not
// report depth.
func (c candidate) depth() decimal.Decimal {
	if c.buy.AskSize.IsZero() || c.sell.BidSize.IsZero() {
		return decimal.Zero
	}
	if c.buy.AskSize.LessThan(c.sell.BidSize) {
		return c.buy.AskSize
	}
	return c.sell.BidSize
}

// Evaluate computes the best cross-venue spread over all ordered venue pairs
// and emits a TradeSignal. Fewer than two usable venues yields a HOLD signal
// with reason "insufficient venues" and domain.ErrInsufficientData; the
// caller logs it and the cycle continues.
func (e *Engine) Evaluate(ctx context.Context, quotes []domain.PriceQuote) (domain.TradeSignal, error) {
	threshold := e.cost.Threshold()

	usable := dedupeByVenue(quotes)
	if len(usable) < 2 {
		sig := domain.TradeSignal{
			Decision:  domain.DecisionHold,
			SpreadPct: decimal.Zero,
			Threshold: threshold,
			Reason:    "insufficient venues",
		}
		e.logDecision(ctx, sig, len(usable))
		return sig, domain.ErrInsufficientData
	}

	best := bestPair(usable)

	sig := domain.TradeSignal{
		Instrument: best.buy.Instrument,
		Decision:   domain.DecisionHold,
		SpreadPct:  best.spread,
		Threshold:  threshold,
		Reason:     "spread below threshold",
	}
	if best.spread.GreaterThan(threshold) {
		sig.Decision = domain.DecisionTrade
		sig.BuyVenue = best.buy.Venue
		sig.SellVenue = best.sell.Venue
		sig.BuyPrice = best.buy.Ask
		sig.SellPrice = best.sell.Bid
		sig.Reason = fmt.Sprintf("arbitrage: buy on %s at %s, sell on %s at %s",
			best.buy.Venue, best.buy.Ask.StringFixed(2),
			best.sell.Venue, best.sell.Bid.StringFixed(2),
		)
	}

	e.logDecision(ctx, sig, len(usable))
	return sig, nil
}

// bestPair selects the ordered pair (A, B) maximizing (B.bid − A.ask)/A.ask.
// Equal spreads break ties by larger limiting depth, then lexicographic
// venue names, for determinism.
func bestPair(quotes []domain.PriceQuote) candidate {
	var best candidate
	first := true
	for i := range quotes {
		for j := range quotes {
			if i == j {
				continue
			}
			buy, sell := quotes[i], quotes[j]
			cand := candidate{
				buy:    buy,
				sell:   sell,
				spread: sell.Bid.Sub(buy.Ask).Div(buy.Ask),
			}
			if first || better(cand, best) {
				best = cand
				first = false
			}
		}
	}
	return best
}

// better reports whether a should replace b as the selected pair.
func better(a, b candidate) bool {
	if !a.spread.Equal(b.spread) {
		return a.spread.GreaterThan(b.spread)
	}
	ad, bd := a.depth(), b.depth()
	if !ad.Equal(bd) {
		return ad.GreaterThan(bd)
	}
	if a.buy.Venue != b.buy.Venue {
		return a.buy.Venue < b.buy.Venue
	}
	return a.sell.Venue < b.sell.Venue
}

// dedupeByVenue drops quotes with non-positive prices and keeps the first
// quote per venue, sorted by venue name so iteration order is stable.
func dedupeByVenue(quotes []domain.PriceQuote) []domain.PriceQuote {
	seen := make(map[string]bool, len(quotes))
	out := make([]domain.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
			continue
		}
		if seen[q.Venue] {
			continue
		}
		seen[q.Venue] = true
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

func (e *Engine) logDecision(ctx context.Context, sig domain.TradeSignal, venues int) {
	data := map[string]any{
		"decision":   string(sig.Decision),
		"spread_pct": sig.SpreadPct.String(),
		"threshold":  sig.Threshold.String(),
		"reason":     sig.Reason,
		"venues":     float64(venues),
	}
	if sig.IsTrade() {
		data["buy_venue"] = sig.BuyVenue
		data["sell_venue"] = sig.SellVenue
		data["buy_price"] = sig.BuyPrice.String()
		data["sell_price"] = sig.SellPrice.String()
	}
	if err := e.audit.Log(ctx, domain.AuditStrategyDecision, data); err != nil {
		e.logger.Warn("audit write failed", slog.String("error", err.Error()))
	}

	e.logger.Debug("strategy decision",
		slog.String("decision", string(sig.Decision)),
		slog.String("spread_pct", sig.SpreadPct.String()),
		slog.String("threshold", sig.Threshold.String()),
	)
}
