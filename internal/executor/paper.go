package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Paper simulates execution without placing real orders: fills at the signal
// prices adjusted by the configured slippage, fees charged on both legs.
// Paper execution never fails on venue conditions, so every result is
// FILLED; an internal invariant violation is a bug, not a retry case.
type Paper struct {
	feeRate  decimal.Decimal
	slippage decimal.Decimal
	ids      *tradeIDs
	audit    domain.AuditSink
	logger   *slog.Logger
	now      func() time.Time
}

// NewPaper creates a paper executor with the given cost assumptions.
func NewPaper(feeRate, slippage decimal.Decimal, audit domain.AuditSink, logger *slog.Logger) *Paper {
	return &Paper{
		feeRate:  feeRate,
		slippage: slippage,
		ids:      newTradeIDs(domain.ModePaper),
		audit:    audit,
		logger:   logger.With(slog.String("component", "paper_executor")),
		now:      time.Now,
	}
}

// Mode returns PAPER.
func (p *Paper) Mode() domain.ExecutionMode { return domain.ModePaper }

// Execute simulates both legs and commits the outcome to state. Latency is
// the wall-clock time between decision receipt and result construction.
func (p *Paper) Execute(ctx context.Context, sig domain.TradeSignal, dec domain.RiskDecision, state *domain.RiskState) (domain.ExecutionResult, error) {
	start := p.now()

	one := decimal.NewFromInt(1)
	qty := dec.PositionSize
	buyFill := sig.BuyPrice.Mul(one.Add(p.slippage))
	sellFill := sig.SellPrice.Mul(one.Sub(p.slippage))

	// Fee on each leg's notional.
	fees := p.feeRate.Mul(qty).Mul(buyFill.Add(sellFill))
	netPnL := sellFill.Sub(buyFill).Mul(qty).Sub(fees)

	end := p.now()
	res := domain.ExecutionResult{
		TradeID:       p.ids.next(),
		Mode:          domain.ModePaper,
		Instrument:    sig.Instrument,
		BuyVenue:      sig.BuyVenue,
		SellVenue:     sig.SellVenue,
		Quantity:      qty,
		BuyFillPrice:  buyFill,
		SellFillPrice: sellFill,
		Fees:          fees,
		NetPnL:        netPnL,
		LatencyMs:     end.Sub(start).Milliseconds(),
		Status:        domain.StatusFilled,
		Reason:        "paper fill",
		Timestamp:     end.UTC(),
	}

	applyFill(state, res)
	auditCycle(ctx, p.audit, p.logger, sig, dec, res)

	p.logger.Info("paper trade executed",
		slog.String("trade_id", res.TradeID),
		slog.String("quantity", qty.String()),
		slog.String("net_pnl", netPnL.String()),
	)
	return res, nil
}
