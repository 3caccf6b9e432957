package risk

import (
	"testing"

	"github.com/Alias1177/Trader/models"
)

func trade(profitPct float64) models.TradeRecord {
	return models.TradeRecord{Symbol: "TEST", ProfitPct: profitPct}
}

func TestWinRateNeutralUntilWindowFills(t *testing.T) {
	h := NewPerformanceHistory(10, nil)
	if h.WinRate() != 0.5 {
		t.Fatalf("empty history win rate = %.2f, want 0.5", h.WinRate())
	}

	for i := 0; i < 9; i++ {
		h.Record(trade(1.0))
	}
	if h.WinRate() != 0.5 {
		t.Fatalf("win rate with 9 of 10 trades = %.2f, want neutral 0.5", h.WinRate())
	}

	h.Record(trade(1.0))
	if h.WinRate() != 1.0 {
		t.Fatalf("win rate with 10 wins = %.2f, want 1.0", h.WinRate())
	}
}

func TestWinRateUsesOnlyRecentWindow(t *testing.T) {
	h := NewPerformanceHistory(4, nil)
	// Four old losses, then four wins: window should see only the wins
	for i := 0; i < 4; i++ {
		h.Record(trade(-2.0))
	}
	for i := 0; i < 4; i++ {
		h.Record(trade(3.0))
	}
	if h.WinRate() != 1.0 {
		t.Fatalf("win rate = %.2f, want 1.0 over the last 4 trades", h.WinRate())
	}
}

func TestWinRateCountsBreakEvenAsLoss(t *testing.T) {
	h := NewPerformanceHistory(2, nil)
	h.Record(trade(0))
	h.Record(trade(5))
	if h.WinRate() != 0.5 {
		t.Fatalf("win rate = %.2f, want 0.5 (break-even is not a win)", h.WinRate())
	}
}

func TestHistorySeededFromPersistedTrades(t *testing.T) {
	seed := []models.TradeRecord{trade(1), trade(1), trade(-1), trade(1)}
	h := NewPerformanceHistory(4, seed)
	if h.WinRate() != 0.75 {
		t.Fatalf("seeded win rate = %.2f, want 0.75", h.WinRate())
	}
	if len(h.Trades()) != 4 {
		t.Fatalf("seeded history has %d trades, want 4", len(h.Trades()))
	}
}
