package store

import (
	"github.com/Alias1177/Trader/models"
)

// State is everything that must survive a process restart: open
// positions (with their stops intact) and the closed-trade log that
// feeds the sizing policy.
type State struct {
	Positions []models.Position    `json:"positions"`
	Trades    []models.TradeRecord `json:"trades"`
}

// Store persists trading state across restarts. SavePositions replaces
// the open-position set; AppendTrade adds to the append-only trade log.
type Store interface {
	Load() (State, error)
	SavePositions(positions []models.Position) error
	AppendTrade(trade models.TradeRecord) error
	Close() error
}
