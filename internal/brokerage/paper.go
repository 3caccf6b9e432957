package brokerage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Trader/models"
)

// PaperBroker simulates order execution locally when no brokerage
// credentials are configured. Fills happen instantly at the order's
// reference price; cash and holdings are tracked so rejection behavior
// (insufficient funds, selling what is not held) matches a real broker.
type PaperBroker struct {
	mu       sync.Mutex
	cash     float64
	holdings map[string]int64
	logger   zerolog.Logger
}

// NewPaperBroker creates a paper broker with the given starting equity.
func NewPaperBroker(startingEquity float64) *PaperBroker {
	return &PaperBroker{
		cash:     startingEquity,
		holdings: make(map[string]int64),
		logger:   log.With().Str("component", "paper_broker").Logger(),
	}
}

// Account reports remaining cash as buying power. Equity ignores
// unrealized market moves; the engine only consumes buying power.
func (p *PaperBroker) Account(ctx context.Context) (models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.Account{BuyingPower: p.cash, Equity: p.cash}, nil
}

// PlaceMarketOrder fills the order at its reference price.
func (p *PaperBroker) PlaceMarketOrder(ctx context.Context, order models.Order) (models.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if order.Quantity < 1 || order.ReferencePrice <= 0 {
		return models.Fill{}, &OrderRejectedError{Order: order, Reason: RejectInvalidSymbol, Message: "no quantity or reference price"}
	}

	switch order.Side {
	case models.OrderBuy:
		cost := float64(order.Quantity) * order.ReferencePrice
		if cost > p.cash {
			return models.Fill{}, &OrderRejectedError{Order: order, Reason: RejectInsufficientFunds, Message: "simulated cash exhausted"}
		}
		p.cash -= cost
		p.holdings[order.Symbol] += order.Quantity
	case models.OrderSell:
		if p.holdings[order.Symbol] < order.Quantity {
			return models.Fill{}, &OrderRejectedError{Order: order, Reason: RejectInvalidSymbol, Message: "no such holding"}
		}
		p.holdings[order.Symbol] -= order.Quantity
		if p.holdings[order.Symbol] == 0 {
			delete(p.holdings, order.Symbol)
		}
		p.cash += float64(order.Quantity) * order.ReferencePrice
	default:
		return models.Fill{}, &OrderRejectedError{Order: order, Reason: RejectInvalidSymbol, Message: "unknown side"}
	}

	p.logger.Info().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Int64("quantity", order.Quantity).
		Float64("price", order.ReferencePrice).
		Msg("Simulated order filled")

	return models.Fill{
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     order.ReferencePrice,
		Timestamp: time.Now(),
	}, nil
}

// Seed registers an existing holding, used when restoring persisted
// positions so restart-time sells are not rejected.
func (p *PaperBroker) Seed(symbol string, quantity int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdings[symbol] += quantity
}
