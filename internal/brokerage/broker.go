package brokerage

import (
	"context"
	"fmt"

	"github.com/Alias1177/Trader/models"
)

// Broker executes market orders and reports account state. Order calls
// are serialized by the engine; Account may be called concurrently.
type Broker interface {
	Account(ctx context.Context) (models.Account, error)
	PlaceMarketOrder(ctx context.Context, order models.Order) (models.Fill, error)
}

// RejectReason classifies why the brokerage declined an order
type RejectReason string

const (
	RejectInsufficientFunds RejectReason = "insufficient_funds"
	RejectInvalidSymbol     RejectReason = "invalid_symbol"
	RejectMarketClosed      RejectReason = "market_closed"
	RejectRateLimited       RejectReason = "rate_limited"
)

// OrderRejectedError is returned when the brokerage declines an order.
// The position state is left untouched by the caller: a rejected buy
// creates nothing, a rejected sell keeps the position OPEN so its stops
// are re-evaluated next tick.
type OrderRejectedError struct {
	Order   models.Order
	Reason  RejectReason
	Message string
}

// Error implements the error interface
func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected (%s %d %s): %s", e.Order.Side, e.Order.Quantity, e.Order.Symbol, e.Reason)
}
