package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Trader/internal/brokerage"
	"github.com/Alias1177/Trader/internal/config"
	"github.com/Alias1177/Trader/internal/marketdata"
	"github.com/Alias1177/Trader/internal/notify"
	"github.com/Alias1177/Trader/internal/store"
	"github.com/Alias1177/Trader/internal/trading/risk"
)

// Engine drives the periodic evaluation loop: fetch, score, protect
// open positions, then open new ones under the account's buying power.
// A single goroutine owns all position state; ticks never overlap.
type Engine struct {
	cfg      *config.Config
	data     marketdata.Provider
	broker   brokerage.Broker
	book     *risk.Book
	perf     *risk.PerformanceHistory
	state    store.Store
	notifier *notify.Notifier
	hours    MarketHours
	logger   zerolog.Logger
}

// New assembles an engine from its collaborators. Previously persisted
// open positions and trade history must already be restored into the
// book and performance history by the caller.
func New(
	cfg *config.Config,
	data marketdata.Provider,
	broker brokerage.Broker,
	book *risk.Book,
	perf *risk.PerformanceHistory,
	state store.Store,
	notifier *notify.Notifier,
) *Engine {
	return &Engine{
		cfg:      cfg,
		data:     data,
		broker:   broker,
		book:     book,
		perf:     perf,
		state:    state,
		notifier: notifier,
		hours:    NewMarketHours(cfg),
		logger:   log.With().Str("component", "engine").Logger(),
	}
}

// Run executes ticks at the configured period until the context is
// canceled. Ticks run inline in this goroutine: if one overruns the
// period the ticker drops the missed beats, so the next tick is
// deferred rather than run concurrently. Shutdown happens between
// ticks, never mid-decision.
func (e *Engine) Run(ctx context.Context) error {
	period := time.Duration(e.cfg.TickPeriodSeconds) * time.Second

	e.logger.Info().
		Strs("symbols", e.cfg.Symbols).
		Dur("period", period).
		Str("timezone", e.cfg.MarketTimezone).
		Int("open_positions", e.book.Len()).
		Msg("Engine starting")

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine stopping")
			return ctx.Err()
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}
