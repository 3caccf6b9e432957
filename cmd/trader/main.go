package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Trader/internal/brokerage"
	"github.com/Alias1177/Trader/internal/config"
	"github.com/Alias1177/Trader/internal/engine"
	"github.com/Alias1177/Trader/internal/marketdata"
	"github.com/Alias1177/Trader/internal/metrics"
	"github.com/Alias1177/Trader/internal/notify"
	"github.com/Alias1177/Trader/internal/store"
	"github.com/Alias1177/Trader/internal/trading/risk"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration invalid")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	log.Info().
		Strs("symbols", cfg.Symbols).
		Float64("base_position_size", cfg.BasePositionSize).
		Float64("stop_loss_pct", cfg.StopLossPct).
		Float64("trailing_stop_pct", cfg.TrailingStopPct).
		Float64("min_entry_severity", cfg.MinEntrySeverity).
		Float64("min_force_exit_severity", cfg.MinForceExitSeverity).
		Int("lookback_sessions", cfg.LookbackSessions).
		Int("tick_period_seconds", cfg.TickPeriodSeconds).
		Bool("paper_mode", cfg.PaperMode()).
		Msg("Trading bot starting")

	stateStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening state store failed")
	}
	defer stateStore.Close()

	state, err := stateStore.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Loading persisted state failed")
	}

	book := risk.NewBook(cfg.StopLossPct, cfg.TrailingStopPct)
	book.Restore(state.Positions)
	perf := risk.NewPerformanceHistory(cfg.WinRateWindow, state.Trades)
	if len(state.Positions) > 0 || len(state.Trades) > 0 {
		log.Info().
			Int("open_positions", book.Len()).
			Int("recorded_trades", len(state.Trades)).
			Msg("Restored persisted state")
	}

	data := marketdata.NewClient(marketdata.ClientOptions{
		BaseURL:        cfg.MarketDataURL,
		APIKey:         cfg.MarketDataAPIKey,
		Sessions:       cfg.LookbackSessions + cfg.RSIPeriod + 5,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})

	broker := buildBroker(cfg, book)

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("Telegram notifications disabled")
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.New(cfg, data, broker, book, perf, stateStore, notifier).Run(ctx); err != nil &&
		!errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Engine stopped with error")
	}

	log.Info().Msg("Trading bot stopped")
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		log.Info().Msg("Using PostgreSQL state store")
		return store.NewPostgresStore(cfg.DatabaseURL)
	}
	log.Info().Str("path", cfg.StateFile).Msg("Using file state store")
	return store.NewFileStore(cfg.StateFile)
}

func buildBroker(cfg *config.Config, book *risk.Book) brokerage.Broker {
	if cfg.PaperMode() {
		log.Warn().Msg("Brokerage credentials not set, orders will be simulated")
		paper := brokerage.NewPaperBroker(cfg.PaperEquity)
		// Restored positions must be sellable in paper mode too.
		for _, pos := range book.OpenPositions() {
			paper.Seed(pos.Symbol, pos.Quantity)
		}
		return paper
	}

	return brokerage.NewHTTPBroker(brokerage.HTTPBrokerOptions{
		BaseURL:        cfg.BrokerURL,
		APIKey:         cfg.BrokerAPIKey,
		APISecret:      cfg.BrokerAPISecret,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
	})
}
