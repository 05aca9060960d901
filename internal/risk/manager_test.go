package risk

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

func testConfig() Config {
	return Config{
		CapitalPctPerTrade:      decimal.NewFromFloat(0.05),
		MaxPositionAbs:          decimal.NewFromInt(1000),
		MaxExposurePct:          decimal.NewFromFloat(0.25),
		MaxDailyLossPct:         decimal.NewFromFloat(0.05),
		CircuitBreakerThreshold: 3,
		LowRiskPct:              decimal.NewFromFloat(0.01),
		MediumRiskPct:           decimal.NewFromFloat(0.10),
	}
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

func newState(balance float64) *domain.RiskState {
	return domain.NewRiskState(decimal.NewFromFloat(balance), time.Now())
}

func TestAssessApprovesAndSizes(t *testing.T) {
	sink := &memSink{}
	m := NewManager(testConfig(), sink, testLogger())
	state := newState(10_000)

	dec := m.Assess(context.Background(), tradeSignal(), state)

	require.True(t, dec.Approved)
	assert.Equal(t, "within risk limits", dec.Reason)

	// 5% of 10,000 at 68,011.05 per unit.
	assert.InDelta(t, 0.00735, dec.PositionSize.InexactFloat64(), 0.0001)
	notional := dec.PositionSize.Mul(tradeSignal().BuyPrice)
	assert.InDelta(t, 500, notional.InexactFloat64(), 0.01)
	assert.True(t, notional.LessThanOrEqual(state.Balance))

	// 5% of balance sits in the MEDIUM bucket (1% < ratio <= 10%).
	assert.Equal(t, domain.RiskLevelMedium, dec.RiskLevel)

	require.Len(t, sink.recs, 1)
	assert.Equal(t, domain.AuditRiskDecision, sink.recs[0].Type)
	assert.Equal(t, true, sink.recs[0].Data["approved"])
}

func TestAssessRejectsAfterDailyLossLimit(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	state := newState(10_000)

	// Daily drawdown of 5.1% latches the halt flag.
	state.DailyPnL = decimal.NewFromFloat(-510)
	state.Balance = decimal.NewFromFloat(9_490)
	m.UpdateHaltFlags(state)
	require.True(t, state.DailyLossLimitHit)

	dec := m.Assess(context.Background(), tradeSignal(), state)
	assert.False(t, dec.Approved)
	assert.Equal(t, "daily loss limit reached", dec.Reason)
	assert.Equal(t, domain.RiskLevelHigh, dec.RiskLevel)

	// A winning trade later in the day must not clear the latch.
	state.DailyPnL = decimal.NewFromFloat(-100)
	m.UpdateHaltFlags(state)
	assert.True(t, state.DailyLossLimitHit)
	dec = m.Assess(context.Background(), tradeSignal(), state)
	assert.False(t, dec.Approved)
}

func TestHaltFlagNotLatchedBelowLimit(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	state := newState(10_000)

	state.DailyPnL = decimal.NewFromFloat(-499)
	m.UpdateHaltFlags(state)
	assert.False(t, state.DailyLossLimitHit)
}

func TestAssessCircuitBreaker(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	state := newState(10_000)
	state.ConsecutiveLosses = 3

	require.True(t, m.CircuitBreakerTripped(state))
	dec := m.Assess(context.Background(), tradeSignal(), state)
	assert.False(t, dec.Approved)
	assert.Equal(t, "circuit breaker engaged", dec.Reason)

	m.ResetCircuitBreaker(state)
	assert.Equal(t, 0, state.ConsecutiveLosses)
	dec = m.Assess(context.Background(), tradeSignal(), state)
	assert.True(t, dec.Approved)
}

func TestAssessExposureLimit(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	state := newState(10_000)

	// 25% of 10,000 = 2,500 cap; 2,200 open plus a ~500 proposal exceeds it.
	state.OpenExposure = decimal.NewFromInt(2_200)

	dec := m.Assess(context.Background(), tradeSignal(), state)
	assert.False(t, dec.Approved)
	assert.Equal(t, "exposure limit", dec.Reason)
}

func TestAssessHoldSignal(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	state := newState(10_000)

	sig := domain.TradeSignal{Decision: domain.DecisionHold, Reason: "spread below threshold"}
	dec := m.Assess(context.Background(), sig, state)
	assert.False(t, dec.Approved)
	assert.Equal(t, "no signal", dec.Reason)
	assert.True(t, dec.PositionSize.IsZero())
}

func TestSizeCappedByAbsoluteLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionAbs = decimal.NewFromFloat(0.001)
	m := NewManager(cfg, &memSink{}, testLogger())
	state := newState(10_000)

	dec := m.Assess(context.Background(), tradeSignal(), state)
	require.True(t, dec.Approved)
	assert.True(t, dec.PositionSize.Equal(decimal.NewFromFloat(0.001)))
}

func TestSizeNeverExceedsBalance(t *testing.T) {
	cfg := testConfig()
	cfg.CapitalPctPerTrade = decimal.NewFromInt(1)
	cfg.MaxExposurePct = decimal.NewFromInt(1)
	cfg.MediumRiskPct = decimal.NewFromInt(2)
	m := NewManager(cfg, &memSink{}, testLogger())
	state := newState(100)

	dec := m.Assess(context.Background(), tradeSignal(), state)
	require.True(t, dec.Approved)
	cost := dec.PositionSize.Mul(tradeSignal().BuyPrice)
	assert.True(t, cost.LessThanOrEqual(state.Balance),
		"position cost %s exceeds balance %s", cost, state.Balance)
}

func TestRollDayResetsCounters(t *testing.T) {
	m := NewManager(testConfig(), &memSink{}, testLogger())
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	state := domain.NewRiskState(decimal.NewFromInt(9_000), start)
	state.DailyPnL = decimal.NewFromInt(-600)
	state.DailyLossLimitHit = true
	state.ConsecutiveLosses = 4

	// Same calendar day: nothing changes.
	require.False(t, m.RollDay(state, start.Add(5*time.Hour)))
	assert.True(t, state.DailyLossLimitHit)

	// Next day: daily counters and the breaker reset, balance carries over.
	require.True(t, m.RollDay(state, start.Add(24*time.Hour)))
	assert.True(t, state.DailyPnL.IsZero())
	assert.False(t, state.DailyLossLimitHit)
	assert.Equal(t, 0, state.ConsecutiveLosses)
	assert.True(t, state.DayStartBalance.Equal(state.Balance))
}
