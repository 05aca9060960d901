// Package venue holds the exchange connector boundary: quote fetching and
// order placement against venue REST APIs. Connectors translate HTTP-level
// failures into the domain error taxonomy so the retry policy can classify
// them.
package venue

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest is one leg of an arbitrage trade.
type OrderRequest struct {
	ClientID   string
	Instrument string
	Side       OrderSide
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
}

// OrderFill is the confirmed outcome of a placed order.
type OrderFill struct {
	OrderID     string
	FilledPrice decimal.Decimal
	FilledQty   decimal.Decimal
	Fee         decimal.Decimal
}

// OrderPlacer submits one order to a venue and reports the fill.
// Implementations must wrap failures in the domain sentinels so callers can
// distinguish transient from non-transient errors.
type OrderPlacer interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderFill, error)
}

// classifyStatus maps an HTTP response status onto the domain error
// taxonomy. Used by every REST connector in this package.
func classifyStatus(venue string, status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: status %d: %s: %w", venue, status, body, domain.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("%s: status %d: %s: %w", venue, status, body, domain.ErrVenueUnavailable)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s: status %d: %s: %w", venue, status, body, domain.ErrUnauthorized)
	case status >= 400:
		return fmt.Errorf("%s: status %d: %s: %w", venue, status, body, domain.ErrInvalidOrder)
	default:
		return nil
	}
}
