package models

import (
	"time"
)

// Candle represents a single daily price bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// Quote is the latest intraday price/volume for a symbol
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	Volume    int64     `json:"volume,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Instrument holds a tracked symbol together with its rolling history
// and most recent quote. History is oldest-first and bounded by the
// configured lookback window.
type Instrument struct {
	Symbol  string   `json:"symbol"`
	History []Candle `json:"history"`
	Quote   Quote    `json:"quote"`
}

// IndicatorSnapshot holds the statistics derived from one instrument
// for one tick. Ephemeral: recomputed every tick, never stored.
type IndicatorSnapshot struct {
	Symbol         string  `json:"symbol"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"std_dev"`
	ZScore         float64 `json:"z_score"`
	RSI            float64 `json:"rsi"`
	PriceChangePct float64 `json:"price_change_pct"` // vs previous close, in percent
	GapPct         float64 `json:"gap_pct"`          // today's open vs previous close, in percent
	VolumeRatio    float64 `json:"volume_ratio"`
	CurrentPrice   float64 `json:"current_price"`
}

// SignalDirection classifies an anomaly signal
type SignalDirection string

const (
	SignalBuy  SignalDirection = "BUY"
	SignalSell SignalDirection = "SELL"
	SignalNone SignalDirection = "NONE"
)

// AnomalySignal is the detector's verdict for one snapshot
type AnomalySignal struct {
	Symbol     string          `json:"symbol"`
	Direction  SignalDirection `json:"direction"`
	Severity   float64         `json:"severity"`
	Conditions []string        `json:"conditions,omitempty"` // e.g. oversold, gap_down, rsi_oversold
	Price      float64         `json:"price"`
}

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is one open trade for a symbol. At most one exists per
// symbol at any time. StopLossPrice is fixed at entry; TrailingStopPrice
// ratchets upward with HighestPrice and never falls below StopLossPrice.
type Position struct {
	Symbol            string         `json:"symbol"`
	Quantity          int64          `json:"quantity"`
	EntryPrice        float64        `json:"entry_price"`
	EntryTime         time.Time      `json:"entry_time"`
	StopLossPrice     float64        `json:"stop_loss_price"`
	HighestPrice      float64        `json:"highest_price"`
	TrailingStopPrice float64        `json:"trailing_stop_price"`
	Status            PositionStatus `json:"status"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// Order is a market order handed to the brokerage
type Order struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity int64     `json:"quantity"`

	// ReferencePrice carries the latest observed price for the symbol.
	// Live brokers ignore it; the paper broker fills at it.
	ReferencePrice float64 `json:"-"`
}

// Fill is a successful order execution
type Fill struct {
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Account is the brokerage's view of buying power and equity
type Account struct {
	BuyingPower float64 `json:"buying_power"`
	Equity      float64 `json:"equity"`
}

// TradeRecord is the outcome of one closed position, appended to the
// performance history when a sell fills.
type TradeRecord struct {
	Symbol     string    `json:"symbol"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ProfitPct  float64   `json:"profit_pct"`
	Reason     string    `json:"reason"` // STOP_LOSS, TRAILING_STOP, OVERBOUGHT
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Win reports whether the trade closed profitable
func (t TradeRecord) Win() bool {
	return t.ProfitPct > 0
}
