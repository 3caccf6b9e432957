package engine

import (
	"time"

	"github.com/Alias1177/Trader/internal/config"
)

// MarketHours decides whether the trading window is open at a given
// instant: weekdays only, between the configured open and close clocks
// in the market's timezone. Holidays are not modeled; a closed exchange
// simply yields no usable quotes.
type MarketHours struct {
	loc       *time.Location
	openTime  config.Clock
	closeTime config.Clock
}

// NewMarketHours builds the predicate from validated configuration.
func NewMarketHours(cfg *config.Config) MarketHours {
	return MarketHours{
		loc:       cfg.Location(),
		openTime:  cfg.OpenClock(),
		closeTime: cfg.CloseClock(),
	}
}

// IsOpen reports whether t falls inside the trading window. The open
// bound is inclusive, the close bound exclusive.
func (h MarketHours) IsOpen(t time.Time) bool {
	local := t.In(h.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= h.openTime.Minutes() && minutes < h.closeTime.Minutes()
}
