package risk

import (
	"github.com/Alias1177/Trader/models"
)

// PerformanceHistory is the process-lifetime record of closed-trade
// outcomes. The win rate used for sizing considers only the most recent
// `window` trades; until that many exist the rate is a neutral 50%.
type PerformanceHistory struct {
	trades []models.TradeRecord
	window int
}

// NewPerformanceHistory creates a history with the given win-rate
// window, seeded with previously persisted trades (oldest first).
func NewPerformanceHistory(window int, seed []models.TradeRecord) *PerformanceHistory {
	if window < 1 {
		window = 1
	}
	h := &PerformanceHistory{window: window}
	h.trades = append(h.trades, seed...)
	return h
}

// Record appends a closed trade. History is never rewound.
func (h *PerformanceHistory) Record(t models.TradeRecord) {
	h.trades = append(h.trades, t)
}

// WinRate returns the fraction of wins over the last `window` closed
// trades, or 0.5 while fewer than `window` trades exist.
func (h *PerformanceHistory) WinRate() float64 {
	if len(h.trades) < h.window {
		return 0.5
	}

	wins := 0
	for _, t := range h.trades[len(h.trades)-h.window:] {
		if t.Win() {
			wins++
		}
	}
	return float64(wins) / float64(h.window)
}

// Trades returns a copy of all recorded trades, oldest first.
func (h *PerformanceHistory) Trades() []models.TradeRecord {
	out := make([]models.TradeRecord, len(h.trades))
	copy(out, h.trades)
	return out
}
