package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alias1177/Trader/internal/anomaly"
	"github.com/Alias1177/Trader/internal/brokerage"
	"github.com/Alias1177/Trader/internal/indicators"
	"github.com/Alias1177/Trader/internal/metrics"
	"github.com/Alias1177/Trader/internal/trading/risk"
	"github.com/Alias1177/Trader/models"
)

// Tick runs one full evaluation cycle: concurrent per-symbol fetch,
// indicator and anomaly evaluation, exit checks for every open
// position, then severity-ordered entries against a single
// buying-power budget. Exported so tests can drive ticks directly.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	if !e.hours.IsOpen(now) {
		metrics.TicksSkipped.Inc()
		e.logger.Debug().Time("tick", now).Msg("Market closed, skipping tick")
		return
	}

	tickLog := e.logger.With().Time("tick", now).Logger()

	instruments := e.fetchAll(ctx, tickLog)
	signals := e.evaluate(instruments, tickLog)

	// Position protection runs first and unconditionally: an open
	// position's stops are checked from the fresh price alone, whether
	// or not any anomaly fired this tick.
	e.runExits(ctx, instruments, signals, tickLog)
	e.runEntries(ctx, instruments, signals, tickLog)

	metrics.OpenPositions.Set(float64(e.book.Len()))
	metrics.TickCompleted()
}

// fetchAll refreshes every tracked instrument with bounded fan-out.
// Each symbol fails in isolation; the decision phase starts only after
// every fetch has settled so decisions see a consistent snapshot.
func (e *Engine) fetchAll(ctx context.Context, tickLog zerolog.Logger) map[string]models.Instrument {
	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		instruments = make(map[string]models.Instrument, len(e.cfg.Symbols))
	)

	sem := make(chan struct{}, e.cfg.FetchConcurrency)
	timeout := time.Duration(e.cfg.RequestTimeout) * time.Second

	for _, symbol := range e.cfg.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			inst, err := e.data.Fetch(fetchCtx, symbol)
			if err != nil {
				metrics.FetchFailures.Inc()
				tickLog.Warn().Err(err).Str("symbol", symbol).Msg("Data fetch failed, skipping symbol this tick")
				return
			}

			mu.Lock()
			instruments[symbol] = inst
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	return instruments
}

// evaluate computes snapshots and anomaly signals for every fetched
// instrument. Symbols with insufficient history are quiescent, not
// failed.
func (e *Engine) evaluate(instruments map[string]models.Instrument, tickLog zerolog.Logger) map[string]models.AnomalySignal {
	signals := make(map[string]models.AnomalySignal, len(instruments))

	for symbol, inst := range instruments {
		snap, err := indicators.Compute(inst, e.cfg.LookbackSessions, e.cfg.RSIPeriod)
		if err != nil {
			if errors.Is(err, indicators.ErrInsufficientHistory) {
				tickLog.Debug().Str("symbol", symbol).Int("bars", len(inst.History)).Msg("Insufficient history, skipping")
			} else {
				tickLog.Warn().Err(err).Str("symbol", symbol).Msg("Indicator computation failed")
			}
			continue
		}

		signal := anomaly.Detect(snap)
		if signal.Direction != models.SignalNone {
			tickLog.Info().
				Str("symbol", symbol).
				Str("direction", string(signal.Direction)).
				Float64("severity", signal.Severity).
				Strs("conditions", signal.Conditions).
				Msg("Anomaly detected")
		}
		signals[symbol] = signal
	}

	return signals
}

// runExits evaluates every open position against its stops and against
// strong overbought signals, submitting sells for the full quantity.
func (e *Engine) runExits(ctx context.Context, instruments map[string]models.Instrument, signals map[string]models.AnomalySignal, tickLog zerolog.Logger) {
	for _, pos := range e.book.OpenPositions() {
		if ctx.Err() != nil {
			return
		}

		inst, ok := instruments[pos.Symbol]
		if !ok {
			// No fresh price; stops stay armed and are re-checked next tick.
			tickLog.Warn().Str("symbol", pos.Symbol).Msg("No data for open position this tick")
			continue
		}
		price := inst.Quote.Price

		shouldExit, reason := e.book.Update(pos.Symbol, price)

		if !shouldExit {
			if sig, ok := signals[pos.Symbol]; ok &&
				sig.Direction == models.SignalSell && sig.Severity >= e.cfg.MinForceExitSeverity {
				shouldExit = true
				reason = risk.ExitOverbought
			}
		}
		if !shouldExit {
			continue
		}

		tickLog.Info().
			Str("symbol", pos.Symbol).
			Str("reason", reason).
			Float64("price", price).
			Msg("Exit triggered")

		fill, err := e.broker.PlaceMarketOrder(ctx, models.Order{
			Symbol:         pos.Symbol,
			Side:           models.OrderSell,
			Quantity:       pos.Quantity,
			ReferencePrice: price,
		})
		if err != nil {
			metrics.OrdersRejected.Inc()
			// A rejected sell keeps the position OPEN; protection is
			// re-evaluated next tick rather than silently dropped.
			tickLog.Error().Err(err).Str("symbol", pos.Symbol).Msg("Sell order failed, position stays open")
			continue
		}
		metrics.OrdersFilled.Inc()

		trade, err := e.book.Close(fill, reason)
		if err != nil {
			tickLog.Error().Err(err).Str("symbol", pos.Symbol).Msg("Closing filled position failed")
			continue
		}

		e.perf.Record(trade)
		e.persistTrade(trade, tickLog)
		e.notifier.PositionClosed(trade)

		tickLog.Info().
			Str("symbol", trade.Symbol).
			Float64("profit_pct", trade.ProfitPct).
			Str("reason", trade.Reason).
			Msg("Position closed")
	}
}

// buyCandidate pairs a signal with its instrument for entry processing
type buyCandidate struct {
	signal models.AnomalySignal
	price  float64
}

// runEntries opens positions for qualifying buy signals in descending
// severity order, consuming a buying-power figure read once per tick.
// Candidates the budget cannot cover are skipped, not queued.
func (e *Engine) runEntries(ctx context.Context, instruments map[string]models.Instrument, signals map[string]models.AnomalySignal, tickLog zerolog.Logger) {
	var candidates []buyCandidate
	for _, symbol := range e.cfg.Symbols {
		sig, ok := signals[symbol]
		if !ok || sig.Direction != models.SignalBuy {
			continue
		}
		if sig.Severity < e.cfg.MinEntrySeverity {
			tickLog.Debug().
				Str("symbol", symbol).
				Float64("severity", sig.Severity).
				Float64("threshold", e.cfg.MinEntrySeverity).
				Msg("Buy severity below threshold")
			continue
		}
		if e.book.Has(symbol) {
			continue
		}
		candidates = append(candidates, buyCandidate{signal: sig, price: instruments[symbol].Quote.Price})
	}
	if len(candidates) == 0 {
		return
	}

	// Highest severity first; equal severities keep configuration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].signal.Severity > candidates[j].signal.Severity
	})

	// The account is one shared resource: read once, then decremented
	// locally as fills land so the tick can never jointly overspend it.
	account, err := e.broker.Account(ctx)
	if err != nil {
		tickLog.Error().Err(err).Msg("Account read failed, no entries this tick")
		return
	}
	budget := account.BuyingPower
	winRate := e.perf.WinRate()

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return
		}
		symbol := cand.signal.Symbol

		decision, err := risk.SizePosition(e.cfg.BasePositionSize, winRate, cand.price, budget)
		if err != nil {
			if errors.Is(err, risk.ErrInsufficientBuyingPower) {
				metrics.CandidatesSkipped.Inc()
				tickLog.Info().
					Str("symbol", symbol).
					Float64("severity", cand.signal.Severity).
					Float64("needed", decision.Notional).
					Float64("budget", budget).
					Msg("Buying power exhausted, skipping candidate")
			} else {
				tickLog.Info().Err(err).Str("symbol", symbol).Msg("Sizing rejected buy")
			}
			continue
		}

		fill, err := e.broker.PlaceMarketOrder(ctx, models.Order{
			Symbol:         symbol,
			Side:           models.OrderBuy,
			Quantity:       decision.Quantity,
			ReferencePrice: cand.price,
		})
		if err != nil {
			metrics.OrdersRejected.Inc()
			var rejected *brokerage.OrderRejectedError
			if errors.As(err, &rejected) {
				tickLog.Warn().
					Str("symbol", symbol).
					Str("reason", string(rejected.Reason)).
					Msg("Buy order rejected")
			} else {
				tickLog.Error().Err(err).Str("symbol", symbol).Msg("Buy order failed")
			}
			continue
		}
		metrics.OrdersFilled.Inc()

		budget -= float64(fill.Quantity) * fill.Price

		pos, err := e.book.Open(fill)
		if err != nil {
			tickLog.Error().Err(err).Str("symbol", symbol).Msg("Recording filled position failed")
			continue
		}

		e.persistPositions(tickLog)
		e.notifier.PositionOpened(pos, cand.signal)

		tickLog.Info().
			Str("symbol", symbol).
			Int64("quantity", pos.Quantity).
			Float64("entry", pos.EntryPrice).
			Float64("stop_loss", pos.StopLossPrice).
			Float64("trailing_stop", pos.TrailingStopPrice).
			Float64("win_rate", winRate).
			Float64("multiplier", decision.Multiplier).
			Msg("Position opened")
	}
}

func (e *Engine) persistTrade(trade models.TradeRecord, tickLog zerolog.Logger) {
	if err := e.state.AppendTrade(trade); err != nil {
		tickLog.Error().Err(err).Str("symbol", trade.Symbol).Msg("Persisting trade failed")
	}
	e.persistPositions(tickLog)
}

func (e *Engine) persistPositions(tickLog zerolog.Logger) {
	if err := e.state.SavePositions(e.book.OpenPositions()); err != nil {
		tickLog.Error().Err(err).Msg("Persisting positions failed")
	}
}
