package risk

import (
	"fmt"
	"math"

	"github.com/Alias1177/Trader/models"
)

// Exit reasons recorded on closed trades.
const (
	ExitStopLoss     = "STOP_LOSS"
	ExitTrailingStop = "TRAILING_STOP"
	ExitOverbought   = "OVERBOUGHT"
)

// Book owns every open position, keyed by symbol. A symbol holds at
// most one OPEN position; it is released back to the pool only when a
// sell order fills. All mutation goes through the Book so the stop
// invariants cannot be violated from outside:
//
//	trailing_stop >= stop_loss at all times
//	trailing_stop never decreases while a position is open
type Book struct {
	stopLossPct     float64
	trailingStopPct float64
	positions       map[string]*models.Position
}

// NewBook creates an empty position book with the given stop distances.
func NewBook(stopLossPct, trailingStopPct float64) *Book {
	return &Book{
		stopLossPct:     stopLossPct,
		trailingStopPct: trailingStopPct,
		positions:       make(map[string]*models.Position),
	}
}

// Restore loads previously persisted open positions, keeping their
// original stops so a restart never loosens protection.
func (b *Book) Restore(positions []models.Position) {
	for _, p := range positions {
		if p.Status != models.PositionOpen {
			continue
		}
		pos := p
		b.positions[pos.Symbol] = &pos
	}
}

// Has reports whether an open position exists for the symbol.
func (b *Book) Has(symbol string) bool {
	_, ok := b.positions[symbol]
	return ok
}

// Get returns a copy of the open position for the symbol.
func (b *Book) Get(symbol string) (models.Position, bool) {
	pos, ok := b.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Open transitions a symbol to OPEN from a filled buy order. The fixed
// stop is set once here and never adjusted; the trailing stop starts
// equal to it and can only ratchet upward.
func (b *Book) Open(fill models.Fill) (models.Position, error) {
	if _, exists := b.positions[fill.Symbol]; exists {
		return models.Position{}, fmt.Errorf("position already open for %s", fill.Symbol)
	}

	stopLoss := fill.Price * (1 - b.stopLossPct)
	pos := &models.Position{
		Symbol:            fill.Symbol,
		Quantity:          fill.Quantity,
		EntryPrice:        fill.Price,
		EntryTime:         fill.Timestamp,
		StopLossPrice:     stopLoss,
		HighestPrice:      fill.Price,
		TrailingStopPrice: math.Max(fill.Price*(1-b.trailingStopPct), stopLoss),
		Status:            models.PositionOpen,
	}
	b.positions[fill.Symbol] = pos
	return *pos, nil
}

// Update ratchets the trailing stop with the current price and reports
// whether the position should be exited. The trailing stop only moves
// when the high-water mark does, so it is monotonically non-decreasing.
func (b *Book) Update(symbol string, currentPrice float64) (shouldExit bool, reason string) {
	pos, ok := b.positions[symbol]
	if !ok {
		return false, ""
	}

	if currentPrice > pos.HighestPrice {
		pos.HighestPrice = currentPrice
		if trailing := currentPrice * (1 - b.trailingStopPct); trailing > pos.TrailingStopPrice {
			pos.TrailingStopPrice = trailing
		}
	}

	if currentPrice <= pos.StopLossPrice {
		return true, ExitStopLoss
	}
	if currentPrice <= pos.TrailingStopPrice {
		return true, ExitTrailingStop
	}
	return false, ""
}

// Close transitions a symbol to CLOSED from a filled sell order,
// removes it from the active set and returns the realized trade.
func (b *Book) Close(fill models.Fill, reason string) (models.TradeRecord, error) {
	pos, ok := b.positions[fill.Symbol]
	if !ok {
		return models.TradeRecord{}, fmt.Errorf("no open position for %s", fill.Symbol)
	}

	profitPct := 0.0
	if pos.EntryPrice > 0 {
		profitPct = (fill.Price - pos.EntryPrice) / pos.EntryPrice * 100
	}

	record := models.TradeRecord{
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill.Price,
		ProfitPct:  profitPct,
		Reason:     reason,
		OpenedAt:   pos.EntryTime,
		ClosedAt:   fill.Timestamp,
	}

	pos.Status = models.PositionClosed
	delete(b.positions, fill.Symbol)
	return record, nil
}

// OpenPositions returns copies of all open positions for persistence.
func (b *Book) OpenPositions() []models.Position {
	out := make([]models.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	return len(b.positions)
}
