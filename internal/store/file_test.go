package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/Trader/models"
)

func TestFileStoreStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	state, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Positions)
	assert.Empty(t, state.Trades)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	entry := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	pos := models.Position{
		Symbol:            "AAPL",
		Quantity:          10,
		EntryPrice:        94,
		EntryTime:         entry,
		StopLossPrice:     89.30,
		HighestPrice:      94,
		TrailingStopPrice: 89.30,
		Status:            models.PositionOpen,
	}
	require.NoError(t, fs.SavePositions([]models.Position{pos}))
	require.NoError(t, fs.AppendTrade(models.TradeRecord{
		Symbol:    "TSLA",
		Quantity:  5,
		ProfitPct: -5,
		Reason:    "STOP_LOSS",
		OpenedAt:  entry,
		ClosedAt:  entry.Add(2 * time.Hour),
	}))

	// Reopen from disk as a restart would
	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	state, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, state.Positions, 1)
	assert.Equal(t, pos, state.Positions[0])
	require.Len(t, state.Trades, 1)
	assert.Equal(t, "TSLA", state.Trades[0].Symbol)
}

func TestFileStoreReplacesPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.SavePositions([]models.Position{
		{Symbol: "AAPL", Status: models.PositionOpen},
		{Symbol: "TSLA", Status: models.PositionOpen},
	}))
	require.NoError(t, fs.SavePositions([]models.Position{
		{Symbol: "TSLA", Status: models.PositionOpen},
	}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	state, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, state.Positions, 1)
	assert.Equal(t, "TSLA", state.Positions[0].Symbol)
}
