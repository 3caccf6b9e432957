package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	Symbols          []string `envconfig:"SYMBOLS"`
	BasePositionSize float64  `envconfig:"BASE_POSITION_SIZE" default:"1000.0"`

	StopLossPct          float64 `envconfig:"STOP_LOSS_PCT" default:"0.05"`
	TrailingStopPct      float64 `envconfig:"TRAILING_STOP_PCT" default:"0.05"`
	MinEntrySeverity     float64 `envconfig:"MIN_ENTRY_SEVERITY" default:"1.0"`
	MinForceExitSeverity float64 `envconfig:"MIN_FORCE_EXIT_SEVERITY" default:"3.0"`

	LookbackSessions int `envconfig:"LOOKBACK_SESSIONS" default:"20"`
	RSIPeriod        int `envconfig:"RSI_PERIOD" default:"14"`
	WinRateWindow    int `envconfig:"WIN_RATE_WINDOW" default:"10"`

	TickPeriodSeconds int    `envconfig:"TICK_PERIOD_SECONDS" default:"60"`
	MarketTimezone    string `envconfig:"MARKET_TIMEZONE" default:"America/New_York"`
	MarketOpen        string `envconfig:"MARKET_OPEN" default:"09:30"`
	MarketClose       string `envconfig:"MARKET_CLOSE" default:"16:00"`
	FetchConcurrency  int    `envconfig:"FETCH_CONCURRENCY" default:"4"`
	RequestTimeout    int    `envconfig:"REQUEST_TIMEOUT" default:"10"` // seconds

	MarketDataURL    string `envconfig:"MARKET_DATA_URL" default:"https://api.twelvedata.com"`
	MarketDataAPIKey string `envconfig:"MARKET_DATA_API_KEY"`

	BrokerURL       string  `envconfig:"BROKER_URL"`
	BrokerAPIKey    string  `envconfig:"BROKER_API_KEY"`
	BrokerAPISecret string  `envconfig:"BROKER_API_SECRET"`
	PaperEquity     float64 `envconfig:"PAPER_EQUITY" default:"100000.0"`

	StateFile   string `envconfig:"STATE_FILE" default:"trader_state.json"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":8080"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks for settings the engine cannot run without.
// Failing here is fatal at startup, before the loop begins.
func (c *Config) Validate() error {
	cleaned := c.Symbols[:0]
	for _, s := range c.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	c.Symbols = cleaned

	if len(c.Symbols) == 0 {
		return fmt.Errorf("no tracked symbols configured, set SYMBOLS")
	}
	if c.MarketDataAPIKey == "" {
		return fmt.Errorf("MARKET_DATA_API_KEY is required")
	}
	if c.BasePositionSize <= 0 {
		return fmt.Errorf("BASE_POSITION_SIZE must be positive, got %.2f", c.BasePositionSize)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("STOP_LOSS_PCT must be in (0,1), got %.4f", c.StopLossPct)
	}
	if c.TrailingStopPct <= 0 || c.TrailingStopPct >= 1 {
		return fmt.Errorf("TRAILING_STOP_PCT must be in (0,1), got %.4f", c.TrailingStopPct)
	}
	if c.LookbackSessions < 2 {
		return fmt.Errorf("LOOKBACK_SESSIONS must be at least 2, got %d", c.LookbackSessions)
	}
	if c.TickPeriodSeconds <= 0 {
		return fmt.Errorf("TICK_PERIOD_SECONDS must be positive, got %d", c.TickPeriodSeconds)
	}
	if c.FetchConcurrency < 1 {
		c.FetchConcurrency = 1
	}
	if _, err := time.LoadLocation(c.MarketTimezone); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.MarketTimezone, err)
	}
	if _, err := parseClock(c.MarketOpen); err != nil {
		return fmt.Errorf("invalid MARKET_OPEN %q: %w", c.MarketOpen, err)
	}
	if _, err := parseClock(c.MarketClose); err != nil {
		return fmt.Errorf("invalid MARKET_CLOSE %q: %w", c.MarketClose, err)
	}
	return nil
}

// Clock is a time-of-day in the market's timezone
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the clock as minutes after midnight
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func parseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// OpenClock returns the parsed market-open time. Validate must have passed.
func (c *Config) OpenClock() Clock {
	cl, _ := parseClock(c.MarketOpen)
	return cl
}

// CloseClock returns the parsed market-close time. Validate must have passed.
func (c *Config) CloseClock() Clock {
	cl, _ := parseClock(c.MarketClose)
	return cl
}

// Location returns the market timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.MarketTimezone)
	return loc
}

// PaperMode reports whether brokerage credentials are absent and
// order execution should be simulated locally.
func (c *Config) PaperMode() bool {
	return c.BrokerAPIKey == "" || c.BrokerAPISecret == ""
}
