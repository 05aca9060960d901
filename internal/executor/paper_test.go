package executor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

type memSink struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (s *memSink) Log(_ context.Context, typ domain.AuditType, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, domain.AuditRecord{Timestamp: time.Now(), Type: typ, Data: data})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tradeSignal() domain.TradeSignal {
	return domain.TradeSignal{
		Instrument: "BTC-USD",
		Decision:   domain.DecisionTrade,
		SpreadPct:  decimal.NewFromFloat(0.0144),
		Threshold:  decimal.NewFromFloat(0.005),
		Reason:     "arbitrage",
		BuyVenue:   "Binance",
		SellVenue:  "Coinbase",
		BuyPrice:   decimal.NewFromFloat(68011.05),
		SellPrice:  decimal.NewFromFloat(68988.79),
	}
}

func approval(qty float64) domain.RiskDecision {
	return domain.RiskDecision{
		Approved:     true,
		Reason:       "within risk limits",
		PositionSize: decimal.NewFromFloat(qty),
		RiskLevel:    domain.RiskLevelMedium,
	}
}

func TestPaperExecuteFillsAndCommits(t *testing.T) {
	sink := &memSink{}
	p := NewPaper(decimal.NewFromFloat(0.001), decimal.Zero, sink, testLogger())
	state := domain.NewRiskState(decimal.NewFromInt(10_000), time.Now())

	res, err := p.Execute(context.Background(), tradeSignal(), approval(0.0074), state)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.TradeID, "PAPER_"), res.TradeID)
	assert.True(t, strings.HasSuffix(res.TradeID, "_0001"), res.TradeID)
	assert.Equal(t, domain.ModePaper, res.Mode)
	assert.Equal(t, domain.StatusFilled, res.Status)
	assert.Equal(t, "paper fill", res.Reason)

	// Fees on both legs' notional and the resulting net PnL.
	assert.InDelta(t, 1.01, res.Fees.InexactFloat64(), 0.01)
	assert.InDelta(t, 6.22, res.NetPnL.InexactFloat64(), 0.01)

	// The fill commits to the risk state.
	assert.True(t, state.DailyPnL.Equal(res.NetPnL))
	assert.InDelta(t, 10_006.22, state.Balance.InexactFloat64(), 0.01)
	assert.Equal(t, 0, state.ConsecutiveLosses)

	require.Len(t, sink.recs, 1)
	assert.Equal(t, domain.AuditTradeCycle, sink.recs[0].Type)

	// IDs are monotonically increasing.
	res2, err := p.Execute(context.Background(), tradeSignal(), approval(0.0074), state)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res2.TradeID, "_0002"), res2.TradeID)
	assert.Greater(t, res2.TradeID, res.TradeID)
}

func TestPaperSlippageAdjustsFills(t *testing.T) {
	p := NewPaper(decimal.NewFromFloat(0.001), decimal.NewFromFloat(0.0005), &memSink{}, testLogger())
	state := domain.NewRiskState(decimal.NewFromInt(10_000), time.Now())

	sig := tradeSignal()
	res, err := p.Execute(context.Background(), sig, approval(0.0074), state)
	require.NoError(t, err)

	// Buy fills worse (higher), sell fills worse (lower).
	wantBuy := sig.BuyPrice.Mul(decimal.NewFromFloat(1.0005))
	wantSell := sig.SellPrice.Mul(decimal.NewFromFloat(0.9995))
	assert.True(t, res.BuyFillPrice.Equal(wantBuy), "buy fill %s want %s", res.BuyFillPrice, wantBuy)
	assert.True(t, res.SellFillPrice.Equal(wantSell), "sell fill %s want %s", res.SellFillPrice, wantSell)
	assert.True(t, res.NetPnL.LessThan(decimal.NewFromFloat(6.23)))
}

func TestPaperLossIncrementsCounter(t *testing.T) {
	p := NewPaper(decimal.NewFromFloat(0.001), decimal.Zero, &memSink{}, testLogger())
	state := domain.NewRiskState(decimal.NewFromInt(10_000), time.Now())

	sig := tradeSignal()
	// Inverted prices: the trade loses money.
	sig.BuyPrice, sig.SellPrice = sig.SellPrice, sig.BuyPrice

	res, err := p.Execute(context.Background(), sig, approval(0.0074), state)
	require.NoError(t, err)

	assert.True(t, res.NetPnL.IsNegative())
	assert.Equal(t, 1, state.ConsecutiveLosses)
	assert.True(t, state.Balance.LessThan(decimal.NewFromInt(10_000)))

	// A winning trade resets the counter.
	win := tradeSignal()
	_, err = p.Execute(context.Background(), win, approval(0.0074), state)
	require.NoError(t, err)
	assert.Equal(t, 0, state.ConsecutiveLosses)
}
