package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/retry"
	"github.com/alanyoungcy/arbot/internal/venue"
)

// Live places real orders: the buy leg first, then the sell leg on its
// confirmed fill. Each leg retries transient failures with backoff; a buy
// fill whose sell leg exhausts its retries leaves an unhedged leg: the
// result is FAILED, the open notional is added to state.OpenExposure, and
// the caller escalates instead of retrying.
type Live struct {
	placers map[string]venue.OrderPlacer
	policy  retry.Policy
	ids     *tradeIDs
	audit   domain.AuditSink
	logger  *slog.Logger
	now     func() time.Time
}

// NewLive creates a live executor routing orders to the given per-venue
// placers.
func NewLive(placers []venue.OrderPlacer, policy retry.Policy, audit domain.AuditSink, logger *slog.Logger) *Live {
	byName := make(map[string]venue.OrderPlacer, len(placers))
	for _, p := range placers {
		byName[p.Name()] = p
	}
	return &Live{
		placers: byName,
		policy:  policy,
		ids:     newTradeIDs(domain.ModeLive),
		audit:   audit,
		logger:  logger.With(slog.String("component", "live_executor")),
		now:     time.Now,
	}
}

// Mode returns LIVE.
func (l *Live) Mode() domain.ExecutionMode { return domain.ModeLive }

// Execute places both legs and commits the outcome to state.
func (l *Live) Execute(ctx context.Context, sig domain.TradeSignal, dec domain.RiskDecision, state *domain.RiskState) (domain.ExecutionResult, error) {
	start := l.now()

	res := domain.ExecutionResult{
		TradeID:    l.ids.next(),
		Mode:       domain.ModeLive,
		Instrument: sig.Instrument,
		BuyVenue:   sig.BuyVenue,
		SellVenue:  sig.SellVenue,
		Quantity:   dec.PositionSize,
	}

	buyFill, err := l.placeLeg(ctx, sig.BuyVenue, venue.OrderRequest{
		ClientID:   uuid.New().String(),
		Instrument: sig.Instrument,
		Side:       venue.SideBuy,
		Quantity:   dec.PositionSize,
		LimitPrice: sig.BuyPrice,
	})
	if err != nil {
		res.Status = domain.StatusFailed
		res.Reason = fmt.Sprintf("buy leg failed: %v", err)
		l.finish(ctx, &res, start, sig, dec)
		return res, err
	}
	res.BuyFillPrice = buyFill.FilledPrice
	res.Fees = buyFill.Fee

	// A zero buy fill leaves nothing to hedge; end the trade without
	// placing the sell leg.
	if !buyFill.FilledQty.IsPositive() {
		res.Status = domain.StatusFailed
		res.Reason = "buy leg not filled"
		res.Quantity = decimal.Zero
		l.finish(ctx, &res, start, sig, dec)
		return res, fmt.Errorf("buy leg: %w", domain.ErrNotFilled)
	}

	sellFill, err := l.placeLeg(ctx, sig.SellVenue, venue.OrderRequest{
		ClientID:   uuid.New().String(),
		Instrument: sig.Instrument,
		Side:       venue.SideSell,
		Quantity:   dec.PositionSize,
		LimitPrice: sig.SellPrice,
	})
	if err != nil {
		// Partial failure: the buy leg holds an open directional position.
		// Record it as open exposure; the orchestrator escalates.
		res.Status = domain.StatusFailed
		res.Reason = "unhedged leg"
		res.UnhedgedNotional = buyFill.FilledPrice.Mul(buyFill.FilledQty)
		state.OpenExposure = state.OpenExposure.Add(res.UnhedgedNotional)

		l.logger.Error("sell leg exhausted retries, position unhedged",
			slog.String("trade_id", res.TradeID),
			slog.String("unhedged_notional", res.UnhedgedNotional.String()),
			slog.String("error", err.Error()),
		)
		l.finish(ctx, &res, start, sig, dec)
		return res, fmt.Errorf("%w: %v", domain.ErrUnhedgedLeg, err)
	}
	res.SellFillPrice = sellFill.FilledPrice
	res.Fees = res.Fees.Add(sellFill.Fee)

	// A sell that executed nothing leaves the whole buy fill unhedged,
	// the same terminal state as an exhausted sell leg.
	if !sellFill.FilledQty.IsPositive() {
		res.Status = domain.StatusFailed
		res.Reason = "unhedged leg"
		res.UnhedgedNotional = buyFill.FilledPrice.Mul(buyFill.FilledQty)
		state.OpenExposure = state.OpenExposure.Add(res.UnhedgedNotional)

		l.logger.Error("sell leg executed no quantity, position unhedged",
			slog.String("trade_id", res.TradeID),
			slog.String("unhedged_notional", res.UnhedgedNotional.String()),
		)
		l.finish(ctx, &res, start, sig, dec)
		return res, fmt.Errorf("%w: sell leg %v", domain.ErrUnhedgedLeg, domain.ErrNotFilled)
	}

	// PnL is computed from the quantity that actually executed on both
	// legs, never from the decision size.
	qty := minDecimal(buyFill.FilledQty, sellFill.FilledQty)
	res.Quantity = qty
	res.NetPnL = sellFill.FilledPrice.Sub(buyFill.FilledPrice).Mul(qty).Sub(res.Fees)
	res.Status = domain.StatusFilled
	res.Reason = "both legs filled"

	applyFill(state, res)
	l.finish(ctx, &res, start, sig, dec)

	l.logger.Info("live trade executed",
		slog.String("trade_id", res.TradeID),
		slog.String("quantity", qty.String()),
		slog.String("net_pnl", res.NetPnL.String()),
	)
	return res, nil
}

// placeLeg routes one order to its venue placer under the retry policy.
func (l *Live) placeLeg(ctx context.Context, venueName string, req venue.OrderRequest) (venue.OrderFill, error) {
	placer, ok := l.placers[venueName]
	if !ok {
		return venue.OrderFill{}, fmt.Errorf("no connector for venue %s: %w", venueName, domain.ErrInvalidOrder)
	}

	var fill venue.OrderFill
	err := l.policy.Do(ctx, func(ctx context.Context) error {
		f, err := placer.PlaceOrder(ctx, req)
		if err != nil {
			return err
		}
		fill = f
		return nil
	})
	return fill, err
}

// finish stamps latency and timestamp, then writes the TRADE_CYCLE record.
func (l *Live) finish(ctx context.Context, res *domain.ExecutionResult, start time.Time, sig domain.TradeSignal, dec domain.RiskDecision) {
	end := l.now()
	res.LatencyMs = end.Sub(start).Milliseconds()
	res.Timestamp = end.UTC()
	auditCycle(ctx, l.audit, l.logger, sig, dec, *res)
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
