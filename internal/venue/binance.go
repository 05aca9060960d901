package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/crypto"
	"github.com/alanyoungcy/arbot/internal/domain"
)

// Binance is a REST connector for the Binance spot API. It implements
// domain.QuoteSource via the public book-ticker endpoint and OrderPlacer via
// the signed order endpoint.
type Binance struct {
	baseURL string
	symbol  string // venue symbol for the configured instrument, e.g. BTCUSDT
	auth    *crypto.HMACAuth
	client  *http.Client
}

// BinanceConfig configures the Binance connector.
type BinanceConfig struct {
	BaseURL string
	Symbol  string
	Auth    *crypto.HMACAuth // nil for quote-only (public) use
	Timeout time.Duration
}

// NewBinance creates a Binance connector.
func NewBinance(cfg BinanceConfig) *Binance {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Binance{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		symbol:  cfg.Symbol,
		auth:    cfg.Auth,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the venue identifier.
func (b *Binance) Name() string { return "Binance" }

// Venue returns the venue identifier (domain.QuoteSource).
func (b *Binance) Venue() string { return "Binance" }

// bookTicker is the /api/v3/ticker/bookTicker response shape.
type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// FetchQuote fetches the current best bid/ask from the public book-ticker
// endpoint.
func (b *Binance) FetchQuote(ctx context.Context, instrument string) (domain.PriceQuote, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", b.baseURL, url.QueryEscape(b.symbol))

	var tick bookTicker
	if err := b.getJSON(ctx, u, &tick); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: fetch quote: %w", err)
	}

	bid, err := decimal.NewFromString(tick.BidPrice)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: parse bid %q: %w", tick.BidPrice, err)
	}
	ask, err := decimal.NewFromString(tick.AskPrice)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("binance: parse ask %q: %w", tick.AskPrice, err)
	}

	q := domain.NewQuote("Binance", instrument, bid, ask, time.Now().UTC())
	if bq, err := decimal.NewFromString(tick.BidQty); err == nil {
		q.BidSize = bq.Mul(bid)
	}
	if aq, err := decimal.NewFromString(tick.AskQty); err == nil {
		q.AskSize = aq.Mul(ask)
	}
	return q, nil
}

// binanceOrderResp is the subset of the order-placement response we use.
type binanceOrderResp struct {
	OrderID             int64  `json:"orderId"`
	Status              string `json:"status"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Fills               []struct {
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Commission string `json:"commission"`
	} `json:"fills"`
}

// PlaceOrder submits a signed limit IOC order. The signature covers the full
// query string per the Binance signed-endpoint scheme.
func (b *Binance) PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error) {
	if b.auth == nil {
		return OrderFill{}, fmt.Errorf("binance: no API credentials configured: %w", domain.ErrUnauthorized)
	}

	params := url.Values{}
	params.Set("symbol", b.symbol)
	params.Set("side", string(req.Side))
	params.Set("type", "LIMIT")
	params.Set("timeInForce", "IOC")
	params.Set("quantity", req.Quantity.String())
	params.Set("price", req.LimitPrice.String())
	params.Set("newClientOrderId", req.ClientID)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	query := params.Encode()
	query += "&signature=" + b.auth.BinanceSignature(query)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/api/v3/order?"+query, nil)
	if err != nil {
		return OrderFill{}, fmt.Errorf("binance: create order request: %w", err)
	}
	httpReq.Header.Set("X-MBX-APIKEY", b.auth.Key)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return OrderFill{}, fmt.Errorf("binance: place order: %w", wrapTransport(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := classifyBinance(resp.StatusCode, body); err != nil {
		return OrderFill{}, fmt.Errorf("binance: place order: %w", err)
	}

	var or binanceOrderResp
	if err := json.Unmarshal(body, &or); err != nil {
		return OrderFill{}, fmt.Errorf("binance: decode order response: %w", err)
	}

	fill := OrderFill{OrderID: strconv.FormatInt(or.OrderID, 10)}
	qty, _ := decimal.NewFromString(or.ExecutedQty)
	quote, _ := decimal.NewFromString(or.CummulativeQuoteQty)
	fill.FilledQty = qty
	if qty.IsPositive() {
		fill.FilledPrice = quote.Div(qty)
	} else {
		fill.FilledPrice = req.LimitPrice
	}
	for _, f := range or.Fills {
		if c, err := decimal.NewFromString(f.Commission); err == nil {
			fill.Fee = fill.Fee.Add(c)
		}
	}
	return fill, nil
}

// classifyBinance maps Binance error responses onto the domain taxonomy,
// including the API-level error codes carried in 400 responses.
func classifyBinance(status int, body []byte) error {
	if status == http.StatusBadRequest {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil {
			switch apiErr.Code {
			case -2010: // NEW_ORDER_REJECTED, typically insufficient balance
				return fmt.Errorf("%s: %w", apiErr.Msg, domain.ErrInsufficientBalance)
			case -1121:
				return fmt.Errorf("%s: %w", apiErr.Msg, domain.ErrInvalidSymbol)
			}
		}
	}
	return classifyStatus("binance", status, string(body))
}

func (b *Binance) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := classifyStatus("binance", resp.StatusCode, string(body)); err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// wrapTransport maps transport-level failures (timeouts, resets) onto the
// retryable domain.ErrTimeout sentinel.
func wrapTransport(err error) error {
	var uerr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
		return fmt.Errorf("%v: %w", err, domain.ErrTimeout)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrVenueUnavailable)
}
