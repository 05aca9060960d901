package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// BinanceStream is a websocket-backed quote source: it subscribes to the
// Binance book-ticker stream, caches the latest top-of-book, and serves it
// to the collector without a per-cycle REST round trip. Reconnects with a
// fixed backoff on disconnect. A quote older than maxAge is treated as
// stale, which excludes the venue from the cycle.
type BinanceStream struct {
	wsURL  string
	symbol string
	maxAge time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	latest domain.PriceQuote
	haveQ  bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewBinanceStream creates a stream source for the given venue symbol
// (e.g. BTCUSDT).
func NewBinanceStream(wsURL, symbol string, maxAge time.Duration, logger *slog.Logger) *BinanceStream {
	return &BinanceStream{
		wsURL:  wsURL,
		symbol: symbol,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "binance_stream")),
		done:   make(chan struct{}),
	}
}

// Venue returns the venue identifier.
func (s *BinanceStream) Venue() string { return "Binance" }

// FetchQuote returns the most recent streamed quote, or an error when no
// sufficiently fresh quote is cached.
func (s *BinanceStream) FetchQuote(ctx context.Context, instrument string) (domain.PriceQuote, error) {
	s.mu.RLock()
	q, ok := s.latest, s.haveQ
	s.mu.RUnlock()

	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("binance stream: no quote yet: %w", domain.ErrInsufficientData)
	}
	if time.Since(q.Timestamp) > s.maxAge {
		return domain.PriceQuote{}, fmt.Errorf("binance stream: quote stale by %s: %w",
			time.Since(q.Timestamp).Truncate(time.Millisecond), domain.ErrInsufficientData)
	}
	q.Instrument = instrument
	return q, nil
}

// Run connects and keeps the stream alive until ctx is cancelled, with a
// 2-second backoff between reconnects.
func (s *BinanceStream) Run(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s@bookTicker", strings.TrimRight(s.wsURL, "/"), strings.ToLower(s.symbol))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("binance stream disconnected, reconnecting", slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// wsBookTicker is the bookTicker stream payload.
type wsBookTicker struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (s *BinanceStream) runConnection(ctx context.Context, url string) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	s.logger.Info("binance stream connected", slog.String("symbol", s.symbol))

	// The unblocker must not outlive this connection, or every reconnect
	// would leave one goroutine parked until shutdown.
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readDone:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%v: %w", err, domain.ErrVenueUnavailable)
		}

		var tick wsBookTicker
		if err := json.Unmarshal(msg, &tick); err != nil {
			s.logger.Warn("binance stream: bad message", slog.String("error", err.Error()))
			continue
		}

		bid, errB := decimal.NewFromString(tick.BidPrice)
		ask, errA := decimal.NewFromString(tick.AskPrice)
		if errB != nil || errA != nil {
			continue
		}

		q := domain.NewQuote("Binance", "", bid, ask, time.Now().UTC())
		if bq, err := decimal.NewFromString(tick.BidQty); err == nil {
			q.BidSize = bq.Mul(bid)
		}
		if aq, err := decimal.NewFromString(tick.AskQty); err == nil {
			q.AskSize = aq.Mul(ask)
		}

		s.mu.Lock()
		s.latest = q
		s.haveQ = true
		s.mu.Unlock()
	}
}

// Close stops the stream.
func (s *BinanceStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
