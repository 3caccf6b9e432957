package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Trader/internal/brokerage"
	"github.com/Alias1177/Trader/internal/config"
	"github.com/Alias1177/Trader/internal/store"
	"github.com/Alias1177/Trader/internal/trading/risk"
	"github.com/Alias1177/Trader/models"
)

// fakeData serves instruments from a map and counts calls
type fakeData struct {
	mu          sync.Mutex
	instruments map[string]models.Instrument
	errs        map[string]error
	calls       int
}

func (f *fakeData) Fetch(ctx context.Context, symbol string) (models.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[symbol]; ok {
		return models.Instrument{}, err
	}
	inst, ok := f.instruments[symbol]
	if !ok {
		return models.Instrument{}, errors.New("unknown symbol")
	}
	return inst, nil
}

func (f *fakeData) setPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := f.instruments[symbol]
	inst.Quote.Price = price
	f.instruments[symbol] = inst
}

// memStore implements store.Store in memory
type memStore struct {
	state store.State
}

func (m *memStore) Load() (store.State, error) { return m.state, nil }
func (m *memStore) SavePositions(p []models.Position) error {
	m.state.Positions = p
	return nil
}
func (m *memStore) AppendTrade(t models.TradeRecord) error {
	m.state.Trades = append(m.state.Trades, t)
	return nil
}
func (m *memStore) Close() error { return nil }

// rejectingBroker declines every order
type rejectingBroker struct{}

func (rejectingBroker) Account(ctx context.Context) (models.Account, error) {
	return models.Account{BuyingPower: 1_000_000}, nil
}
func (rejectingBroker) PlaceMarketOrder(ctx context.Context, order models.Order) (models.Fill, error) {
	return models.Fill{}, &brokerage.OrderRejectedError{Order: order, Reason: brokerage.RejectRateLimited}
}

func testConfig(symbols ...string) *config.Config {
	return &config.Config{
		Symbols:              symbols,
		BasePositionSize:     1000,
		StopLossPct:          0.05,
		TrailingStopPct:      0.05,
		MinEntrySeverity:     1.0,
		MinForceExitSeverity: 3.0,
		LookbackSessions:     20,
		RSIPeriod:            14,
		WinRateWindow:        10,
		TickPeriodSeconds:    60,
		MarketTimezone:       "UTC",
		MarketOpen:           "00:00",
		MarketClose:          "23:59",
		FetchConcurrency:     4,
		RequestTimeout:       5,
	}
}

// a Monday, well inside the always-open test window
var tickTime = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

// mkInstrument builds 20 sessions alternating 98/102 (mean 100, stddev 2,
// previous close 102) with the given current price.
func mkInstrument(symbol string, price float64) models.Instrument {
	history := make([]models.Candle, 20)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range history {
		close := 98.0
		if i%2 == 1 {
			close = 102.0
		}
		history[i] = models.Candle{
			Date:   day.Add(time.Duration(i) * 24 * time.Hour),
			Open:   close,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1_000_000,
		}
	}
	return models.Instrument{
		Symbol:  symbol,
		History: history,
		Quote: models.Quote{
			Symbol:    symbol,
			Price:     price,
			Open:      102,
			Volume:    1_000_000,
			Timestamp: tickTime,
		},
	}
}

// mkFlatInstrument builds 20 flat sessions at 100 with the given price.
func mkFlatInstrument(symbol string, price float64) models.Instrument {
	history := make([]models.Candle, 20)
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range history {
		history[i] = models.Candle{
			Date:   day.Add(time.Duration(i) * 24 * time.Hour),
			Open:   100, High: 101, Low: 99, Close: 100,
			Volume: 1_000_000,
		}
	}
	return models.Instrument{
		Symbol:  symbol,
		History: history,
		Quote: models.Quote{
			Symbol:    symbol,
			Price:     price,
			Open:      100,
			Volume:    1_000_000,
			Timestamp: tickTime,
		},
	}
}

func newTestEngine(cfg *config.Config, data *fakeData, broker brokerage.Broker) (*Engine, *risk.Book, *risk.PerformanceHistory, *memStore) {
	book := risk.NewBook(cfg.StopLossPct, cfg.TrailingStopPct)
	perf := risk.NewPerformanceHistory(cfg.WinRateWindow, nil)
	st := &memStore{}
	return New(cfg, data, broker, book, perf, st, nil), book, perf, st
}

func TestTickBudgetPrefersHigherSeverity(t *testing.T) {
	cfg := testConfig("LOWSEV", "HISEV")
	data := &fakeData{instruments: map[string]models.Instrument{
		// 93 is a deeper breach than 94 on the same statistics
		"HISEV":  mkInstrument("HISEV", 93),
		"LOWSEV": mkInstrument("LOWSEV", 94),
	}}
	// Enough cash for one adjusted notional (1000), not two
	broker := brokerage.NewPaperBroker(1500)

	eng, book, _, st := newTestEngine(cfg, data, broker)
	eng.Tick(context.Background(), tickTime)

	require.True(t, book.Has("HISEV"), "higher-severity candidate must be filled")
	assert.False(t, book.Has("LOWSEV"), "exhausted buying power must skip the lower-severity candidate")
	assert.Len(t, st.state.Positions, 1, "filled position must be persisted")

	// Skipped candidates are not queued: with replenished data but no new
	// cash the next tick skips it again.
	eng.Tick(context.Background(), tickTime.Add(time.Minute))
	assert.False(t, book.Has("LOWSEV"))
}

func TestTickOpensPositionWithStops(t *testing.T) {
	cfg := testConfig("AAPL")
	data := &fakeData{instruments: map[string]models.Instrument{
		"AAPL": mkInstrument("AAPL", 94), // z = -3.0
	}}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, _, _ := newTestEngine(cfg, data, broker)
	eng.Tick(context.Background(), tickTime)

	pos, ok := book.Get("AAPL")
	require.True(t, ok, "buy signal at z=-3 must open a position")
	assert.Equal(t, int64(10), pos.Quantity) // floor(1000/94)
	assert.InDelta(t, 89.30, pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 89.30, pos.TrailingStopPrice, 1e-9)
}

func TestTickTrailingStopExit(t *testing.T) {
	cfg := testConfig("AAPL")
	cfg.MinForceExitSeverity = 1000 // isolate the stop path from overbought exits
	data := &fakeData{instruments: map[string]models.Instrument{
		"AAPL": mkFlatInstrument("AAPL", 110),
	}}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, perf, st := newTestEngine(cfg, data, broker)
	_, err := book.Open(models.Fill{
		Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10, Price: 100, Timestamp: tickTime,
	})
	require.NoError(t, err)
	broker.Seed("AAPL", 10)

	// Tick 1: price 110 ratchets the trailing stop to 104.5
	eng.Tick(context.Background(), tickTime)
	pos, ok := book.Get("AAPL")
	require.True(t, ok, "position must survive a rising price")
	assert.InDelta(t, 104.5, pos.TrailingStopPrice, 1e-9)

	// Tick 2: price 104 breaches the ratcheted stop
	data.setPrice("AAPL", 104)
	eng.Tick(context.Background(), tickTime.Add(time.Minute))

	require.False(t, book.Has("AAPL"), "104 <= 104.5 must close the position")
	require.Len(t, st.state.Trades, 1)
	trade := st.state.Trades[0]
	assert.Equal(t, risk.ExitTrailingStop, trade.Reason)
	assert.InDelta(t, 4.0, trade.ProfitPct, 1e-9)
	assert.Len(t, perf.Trades(), 1, "closed trade must reach the performance history")
	assert.True(t, perf.Trades()[0].Win())
}

func TestTickForceExitOnStrongOverbought(t *testing.T) {
	cfg := testConfig("AAPL")
	// Flat history then 110: +10% move and RSI 100 push sell severity
	// well past the force-exit threshold of 3.0
	data := &fakeData{instruments: map[string]models.Instrument{
		"AAPL": mkFlatInstrument("AAPL", 110),
	}}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, _, st := newTestEngine(cfg, data, broker)
	_, err := book.Open(models.Fill{
		Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10, Price: 100, Timestamp: tickTime,
	})
	require.NoError(t, err)
	broker.Seed("AAPL", 10)

	eng.Tick(context.Background(), tickTime)

	require.False(t, book.Has("AAPL"), "strong overbought signal must force-close the position")
	require.Len(t, st.state.Trades, 1)
	assert.Equal(t, risk.ExitOverbought, st.state.Trades[0].Reason)
	assert.InDelta(t, 10.0, st.state.Trades[0].ProfitPct, 1e-9)
}

func TestTickFetchFailureIsIsolated(t *testing.T) {
	cfg := testConfig("BROKEN", "AAPL")
	data := &fakeData{
		instruments: map[string]models.Instrument{
			"AAPL": mkInstrument("AAPL", 94),
		},
		errs: map[string]error{"BROKEN": errors.New("upstream timeout")},
	}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, _, _ := newTestEngine(cfg, data, broker)
	eng.Tick(context.Background(), tickTime)

	assert.True(t, book.Has("AAPL"), "one symbol's failure must not stall the rest of the tick")
	assert.False(t, book.Has("BROKEN"))
}

func TestTickRejectedSellKeepsPosition(t *testing.T) {
	cfg := testConfig("AAPL")
	cfg.MinForceExitSeverity = 1000
	data := &fakeData{instruments: map[string]models.Instrument{
		"AAPL": mkFlatInstrument("AAPL", 90), // below the 95 stop
	}}

	eng, book, _, st := newTestEngine(cfg, data, rejectingBroker{})
	_, err := book.Open(models.Fill{
		Symbol: "AAPL", Side: models.OrderBuy, Quantity: 10, Price: 100, Timestamp: tickTime,
	})
	require.NoError(t, err)

	eng.Tick(context.Background(), tickTime)

	assert.True(t, book.Has("AAPL"), "a rejected sell must leave the position open for the next tick")
	assert.Empty(t, st.state.Trades)
}

func TestTickMarketClosed(t *testing.T) {
	cfg := testConfig("AAPL")
	cfg.MarketOpen = "09:30"
	cfg.MarketClose = "16:00"
	data := &fakeData{instruments: map[string]models.Instrument{
		"AAPL": mkInstrument("AAPL", 94),
	}}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, _, _ := newTestEngine(cfg, data, broker)
	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	eng.Tick(context.Background(), saturday)

	assert.Zero(t, data.calls, "closed market must skip fetching entirely")
	assert.False(t, book.Has("AAPL"))
}

func TestTickInsufficientHistoryIsQuiescent(t *testing.T) {
	cfg := testConfig("NEW")
	inst := mkInstrument("NEW", 94)
	inst.History = inst.History[:5]
	data := &fakeData{instruments: map[string]models.Instrument{"NEW": inst}}
	broker := brokerage.NewPaperBroker(100_000)

	eng, book, _, _ := newTestEngine(cfg, data, broker)
	eng.Tick(context.Background(), tickTime)

	assert.False(t, book.Has("NEW"), "short history must not produce trades")
}
