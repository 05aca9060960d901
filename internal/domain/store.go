package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and filtering for list queries. Status is an
// optional filter; empty matches all.
type ListOpts struct {
	Limit  int
	Offset int
	Status ExecutionStatus
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists terminal execution results for later inspection by
// operators and the dashboard collaborator.
type TradeStore interface {
	SaveResult(ctx context.Context, res ExecutionResult) error
	GetByTradeID(ctx context.Context, tradeID string) (ExecutionResult, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ExecutionResult, error)
	CountByStatus(ctx context.Context, status ExecutionStatus) (int64, error)
}

// ResultBus is the execution outcome channel: terminal ExecutionResults are
// published for external consumers (dashboard, alerting) to tail.
type ResultBus interface {
	PublishResult(ctx context.Context, res ExecutionResult) error
	SubscribeResults(ctx context.Context) (<-chan ExecutionResult, error)
}

// QuoteSource supplies one venue's quote for an instrument. Implementations
// live at the edge (REST pollers, websocket streams, fixtures); a failed
// fetch surfaces as an error and the venue is excluded from that cycle.
type QuoteSource interface {
	Venue() string
	FetchQuote(ctx context.Context, instrument string) (PriceQuote, error)
}

// BlobWriter uploads objects to cold storage. PutMultipart is used for
// payloads large enough to benefit from concurrent part uploads.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
