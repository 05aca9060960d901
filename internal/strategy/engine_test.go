package strategy

import (
	"context"
	"io"
	"log/slog"
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

func newTestEngine(sink domain.AuditSink) *Engine {
	return NewEngine(CostModel{
		FeeRate:   decimal.NewFromFloat(0.001),
		Slippage:  decimal.NewFromFloat(0.0005),
		MinSpread: decimal.NewFromFloat(0.002),
	}, sink, testLogger())
}

func quote(venue string, bid, ask float64) domain.PriceQuote {
	return domain.NewQuote(venue, "BTC-USD",
		decimal.NewFromFloat(bid), decimal.NewFromFloat(ask), time.Now())
}

func TestEvaluateCrossVenueSpread(t *testing.T) {
	sink := &memSink{}
	engine := newTestEngine(sink)

	quotes := []domain.PriceQuote{
		quote("Binance", 68010.00, 68011.05),
		quote("Coinbase", 68988.79, 68990.00),
	}

	sig, err := engine.Evaluate(context.Background(), quotes)
	require.NoError(t, err)

	require.True(t, sig.IsTrade())
	assert.Equal(t, "Binance", sig.BuyVenue)
	assert.Equal(t, "Coinbase", sig.SellVenue)
	assert.True(t, sig.BuyPrice.Equal(decimal.NewFromFloat(68011.05)))
	assert.True(t, sig.SellPrice.Equal(decimal.NewFromFloat(68988.79)))

	// (68988.79 - 68011.05) / 68011.05 ≈ 1.44%
	assert.InDelta(t, 0.014376, sig.SpreadPct.InexactFloat64(), 0.0001)
	assert.InDelta(t, 0.005, sig.Threshold.InexactFloat64(), 1e-9)
	assert.Contains(t, sig.Reason, "buy on Binance")

	require.Len(t, sink.recs, 1)
	assert.Equal(t, domain.AuditStrategyDecision, sink.recs[0].Type)
	assert.Equal(t, "TRADE", sink.recs[0].Data["decision"])
}

func TestEvaluateIdenticalPricesHolds(t *testing.T) {
	engine := newTestEngine(&memSink{})

	quotes := []domain.PriceQuote{
		quote("Binance", 68500, 68500),
		quote("Coinbase", 68500, 68500),
	}

	sig, err := engine.Evaluate(context.Background(), quotes)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, "spread below threshold", sig.Reason)
	assert.True(t, sig.SpreadPct.IsZero())
	assert.Empty(t, sig.BuyVenue)
	assert.Empty(t, sig.SellVenue)
}

func TestEvaluateSpreadBelowThresholdHolds(t *testing.T) {
	engine := newTestEngine(&memSink{})

	// Positive spread (~0.29%) but below the 0.5% threshold.
	quotes := []domain.PriceQuote{
		quote("Binance", 68000, 68010),
		quote("Coinbase", 68210, 68220),
	}

	sig, err := engine.Evaluate(context.Background(), quotes)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.True(t, sig.SpreadPct.IsPositive())
	assert.True(t, sig.SpreadPct.LessThan(sig.Threshold))
}

func TestEvaluateInsufficientVenues(t *testing.T) {
	sink := &memSink{}
	engine := newTestEngine(sink)

	sig, err := engine.Evaluate(context.Background(), []domain.PriceQuote{
		quote("Binance", 68010, 68011),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Equal(t, domain.DecisionHold, sig.Decision)
	assert.Equal(t, "insufficient venues", sig.Reason)
	require.Len(t, sink.recs, 1)
}

func TestEvaluateDropsUnusableQuotes(t *testing.T) {
	engine := newTestEngine(&memSink{})

	// The zero-priced quote must not count as a venue.
	quotes := []domain.PriceQuote{
		quote("Binance", 68010, 68011),
		quote("Coinbase", 0, 68990),
	}

	_, err := engine.Evaluate(context.Background(), quotes)
	require.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := newTestEngine(&memSink{})

	quotes := []domain.PriceQuote{
		quote("Binance", 68010.00, 68011.05),
		quote("Coinbase", 68988.79, 68990.00),
	}

	first, err := engine.Evaluate(context.Background(), quotes)
	require.NoError(t, err)
	second, err := engine.Evaluate(context.Background(), quotes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluateTieBreakPrefersDepth(t *testing.T) {
	engine := newTestEngine(&memSink{})

	// Both directions carry the same spread; only the Beta→Alpha pair has
	// usable depth on both sides.
	alpha := quote("Alpha", 101, 100)
	alpha.BidSize = decimal.NewFromInt(5)
	beta := quote("Beta", 101, 100)
	beta.AskSize = decimal.NewFromInt(3)

	sig, err := engine.Evaluate(context.Background(), []domain.PriceQuote{alpha, beta})
	require.NoError(t, err)

	require.True(t, sig.IsTrade())
	assert.Equal(t, "Beta", sig.BuyVenue)
	assert.Equal(t, "Alpha", sig.SellVenue)
}

func TestEvaluateTieBreakLexicographic(t *testing.T) {
	engine := newTestEngine(&memSink{})

	// Same spread, no depth on either side: lexicographic venue order decides.
	sig, err := engine.Evaluate(context.Background(), []domain.PriceQuote{
		quote("Beta", 101, 100),
		quote("Alpha", 101, 100),
	})
	require.NoError(t, err)

	require.True(t, sig.IsTrade())
	assert.Equal(t, "Alpha", sig.BuyVenue)
	assert.Equal(t, "Beta", sig.SellVenue)
}

func TestThresholdMonotonic(t *testing.T) {
	base := CostModel{
		FeeRate:   decimal.NewFromFloat(0.001),
		Slippage:  decimal.NewFromFloat(0.0005),
		MinSpread: decimal.NewFromFloat(0.002),
	}

	higherFee := base
	higherFee.FeeRate = decimal.NewFromFloat(0.002)
	assert.True(t, higherFee.Threshold().GreaterThan(base.Threshold()))

	higherSlip := base
	higherSlip.Slippage = decimal.NewFromFloat(0.001)
	assert.True(t, higherSlip.Threshold().GreaterThan(base.Threshold()))

	higherMin := base
	higherMin.MinSpread = decimal.NewFromFloat(0.003)
	assert.True(t, higherMin.Threshold().GreaterThan(base.Threshold()))
}
