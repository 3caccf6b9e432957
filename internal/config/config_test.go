package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Symbols:           []string{"AAPL", "TSLA"},
		BasePositionSize:  1000,
		StopLossPct:       0.05,
		TrailingStopPct:   0.05,
		LookbackSessions:  20,
		TickPeriodSeconds: 60,
		FetchConcurrency:  4,
		MarketTimezone:    "America/New_York",
		MarketOpen:        "09:30",
		MarketClose:       "16:00",
		MarketDataAPIKey:  "key",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateNormalizesSymbols(t *testing.T) {
	cfg := validConfig()
	cfg.Symbols = []string{" aapl ", "", "Tsla"}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"AAPL", "TSLA"}, cfg.Symbols)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"blank symbols", func(c *Config) { c.Symbols = []string{" ", ""} }},
		{"missing api key", func(c *Config) { c.MarketDataAPIKey = "" }},
		{"zero position size", func(c *Config) { c.BasePositionSize = 0 }},
		{"stop loss out of range", func(c *Config) { c.StopLossPct = 1.5 }},
		{"trailing stop out of range", func(c *Config) { c.TrailingStopPct = 0 }},
		{"lookback too short", func(c *Config) { c.LookbackSessions = 1 }},
		{"zero tick period", func(c *Config) { c.TickPeriodSeconds = 0 }},
		{"bad timezone", func(c *Config) { c.MarketTimezone = "Mars/Olympus" }},
		{"bad open clock", func(c *Config) { c.MarketOpen = "9am" }},
		{"bad close clock", func(c *Config) { c.MarketClose = "25:00" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateFloorsFetchConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.FetchConcurrency = 0

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.FetchConcurrency)
}

func TestClockHelpers(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Clock{Hour: 9, Minute: 30}, cfg.OpenClock())
	assert.Equal(t, Clock{Hour: 16, Minute: 0}, cfg.CloseClock())
	assert.Equal(t, 9*60+30, cfg.OpenClock().Minutes())
	assert.Equal(t, "America/New_York", cfg.Location().String())
}

func TestPaperMode(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.PaperMode())

	cfg.BrokerAPIKey = "key"
	assert.True(t, cfg.PaperMode(), "secret still missing")

	cfg.BrokerAPISecret = "secret"
	assert.False(t, cfg.PaperMode())
}
