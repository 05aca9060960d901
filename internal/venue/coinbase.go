package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/crypto"
	"github.com/alanyoungcy/arbot/internal/domain"
)

// Coinbase is a REST connector for the Coinbase Exchange API. It implements
// domain.QuoteSource via the public product ticker and OrderPlacer via the
// authenticated orders endpoint.
type Coinbase struct {
	baseURL   string
	productID string // e.g. BTC-USD
	auth      *crypto.HMACAuth
	client    *http.Client
}

// CoinbaseConfig configures the Coinbase connector.
type CoinbaseConfig struct {
	BaseURL   string
	ProductID string
	Auth      *crypto.HMACAuth // nil for quote-only (public) use
	Timeout   time.Duration
}

// NewCoinbase creates a Coinbase connector.
func NewCoinbase(cfg CoinbaseConfig) *Coinbase {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Coinbase{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		productID: cfg.ProductID,
		auth:      cfg.Auth,
		client:    &http.Client{Timeout: timeout},
	}
}

// Name returns the venue identifier.
func (c *Coinbase) Name() string { return "Coinbase" }

// Venue returns the venue identifier (domain.QuoteSource).
func (c *Coinbase) Venue() string { return "Coinbase" }

// productTicker is the /products/{id}/ticker response shape.
type productTicker struct {
	Bid  string `json:"bid"`
	Ask  string `json:"ask"`
	Size string `json:"size"`
	Time string `json:"time"`
}

// FetchQuote fetches the current best bid/ask from the public ticker.
func (c *Coinbase) FetchQuote(ctx context.Context, instrument string) (domain.PriceQuote, error) {
	path := fmt.Sprintf("/products/%s/ticker", c.productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: fetch quote: %w", wrapTransport(err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := classifyStatus("coinbase", resp.StatusCode, string(body)); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: fetch quote: %w", err)
	}

	var tick productTicker
	if err := json.Unmarshal(body, &tick); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: decode ticker: %w", err)
	}

	bid, err := decimal.NewFromString(tick.Bid)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: parse bid %q: %w", tick.Bid, err)
	}
	ask, err := decimal.NewFromString(tick.Ask)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coinbase: parse ask %q: %w", tick.Ask, err)
	}

	return domain.NewQuote("Coinbase", instrument, bid, ask, time.Now().UTC()), nil
}

// coinbaseOrderResp is the subset of the order response we use.
type coinbaseOrderResp struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FilledSize    string `json:"filled_size"`
	ExecutedValue string `json:"executed_value"`
	FillFees      string `json:"fill_fees"`
	RejectReason  string `json:"reject_reason"`
}

// PlaceOrder submits an authenticated limit order with immediate-or-cancel
// semantics.
func (c *Coinbase) PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error) {
	if c.auth == nil {
		return OrderFill{}, fmt.Errorf("coinbase: no API credentials configured: %w", domain.ErrUnauthorized)
	}

	payload := map[string]string{
		"client_oid":    req.ClientID,
		"product_id":    c.productID,
		"side":          strings.ToLower(string(req.Side)),
		"type":          "limit",
		"time_in_force": "IOC",
		"price":         req.LimitPrice.String(),
		"size":          req.Quantity.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return OrderFill{}, fmt.Errorf("coinbase: marshal order: %w", err)
	}

	const path = "/orders"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return OrderFill{}, fmt.Errorf("coinbase: create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.auth.CoinbaseHeaders(http.MethodPost, path, string(body)) {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return OrderFill{}, fmt.Errorf("coinbase: place order: %w", wrapTransport(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := classifyCoinbase(resp.StatusCode, respBody); err != nil {
		return OrderFill{}, fmt.Errorf("coinbase: place order: %w", err)
	}

	var or coinbaseOrderResp
	if err := json.Unmarshal(respBody, &or); err != nil {
		return OrderFill{}, fmt.Errorf("coinbase: decode order response: %w", err)
	}

	fill := OrderFill{OrderID: or.ID}
	qty, _ := decimal.NewFromString(or.FilledSize)
	val, _ := decimal.NewFromString(or.ExecutedValue)
	fill.FilledQty = qty
	if qty.IsPositive() {
		fill.FilledPrice = val.Div(qty)
	} else {
		fill.FilledPrice = req.LimitPrice
	}
	if fee, err := decimal.NewFromString(or.FillFees); err == nil {
		fill.Fee = fee
	}
	return fill, nil
}

// classifyCoinbase maps Coinbase error responses onto the domain taxonomy.
// Coinbase reports business rejections as 400 with a message field.
func classifyCoinbase(status int, body []byte) error {
	if status == http.StatusBadRequest {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil {
			msg := strings.ToLower(apiErr.Message)
			switch {
			case strings.Contains(msg, "insufficient funds"):
				return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrInsufficientBalance)
			case strings.Contains(msg, "product not found"):
				return fmt.Errorf("%s: %w", apiErr.Message, domain.ErrInvalidSymbol)
			}
		}
	}
	return classifyStatus("coinbase", status, string(body))
}
