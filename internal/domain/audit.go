package domain

import (
	"context"
	"time"
)

// AuditType classifies an audit record.
type AuditType string

const (
	AuditPriceCheck       AuditType = "PRICE_CHECK"
	AuditStrategyDecision AuditType = "STRATEGY_DECISION"
	AuditRiskDecision     AuditType = "RISK_DECISION"
	AuditTradeCycle       AuditType = "TRADE_CYCLE"
)

// AuditRecord is one append-only audit event. Records are serialized one JSON
// object per line; append order equals cycle order.
type AuditRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      AuditType      `json:"type"`
	Data      map[string]any `json:"data"`
}

// AuditSink is the append-only structured event sink every pipeline component
// writes through. Log must make the record durable before returning so the
// next cycle never starts ahead of the previous cycle's audit trail.
type AuditSink interface {
	Log(ctx context.Context, typ AuditType, data map[string]any) error
}
