package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Alias1177/Trader/models"
)

// PostgresStore persists state in PostgreSQL, for deployments where the
// process can be rescheduled onto a different host.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to the database and creates the schema if
// it does not exist yet.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS open_positions (
			symbol TEXT PRIMARY KEY,
			quantity BIGINT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			stop_loss_price DOUBLE PRECISION NOT NULL,
			highest_price DOUBLE PRECISION NOT NULL,
			trailing_stop_price DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trade_log (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			profit_pct DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

// Load reads open positions and the trade log, oldest trade first.
func (s *PostgresStore) Load() (State, error) {
	var state State

	rows, err := s.db.Query(`
		SELECT symbol, quantity, entry_price, entry_time,
		       stop_loss_price, highest_price, trailing_stop_price
		FROM open_positions
	`)
	if err != nil {
		return State{}, fmt.Errorf("loading positions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pos := models.Position{Status: models.PositionOpen}
		if err := rows.Scan(
			&pos.Symbol, &pos.Quantity, &pos.EntryPrice, &pos.EntryTime,
			&pos.StopLossPrice, &pos.HighestPrice, &pos.TrailingStopPrice,
		); err != nil {
			return State{}, fmt.Errorf("scanning position: %w", err)
		}
		state.Positions = append(state.Positions, pos)
	}
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	tradeRows, err := s.db.Query(`
		SELECT symbol, quantity, entry_price, exit_price, profit_pct, reason, opened_at, closed_at
		FROM trade_log ORDER BY id
	`)
	if err != nil {
		return State{}, fmt.Errorf("loading trades: %w", err)
	}
	defer tradeRows.Close()

	for tradeRows.Next() {
		var t models.TradeRecord
		if err := tradeRows.Scan(
			&t.Symbol, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
			&t.ProfitPct, &t.Reason, &t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return State{}, fmt.Errorf("scanning trade: %w", err)
		}
		state.Trades = append(state.Trades, t)
	}
	return state, tradeRows.Err()
}

// SavePositions replaces the open-position set in one transaction.
func (s *PostgresStore) SavePositions(positions []models.Position) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM open_positions`); err != nil {
		return fmt.Errorf("clearing positions: %w", err)
	}

	for _, pos := range positions {
		_, err := tx.Exec(`
			INSERT INTO open_positions (
				symbol, quantity, entry_price, entry_time,
				stop_loss_price, highest_price, trailing_stop_price
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, pos.Symbol, pos.Quantity, pos.EntryPrice, pos.EntryTime,
			pos.StopLossPrice, pos.HighestPrice, pos.TrailingStopPrice)
		if err != nil {
			return fmt.Errorf("inserting position %s: %w", pos.Symbol, err)
		}
	}

	return tx.Commit()
}

// AppendTrade inserts one closed trade into the log.
func (s *PostgresStore) AppendTrade(t models.TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trade_log (
			symbol, quantity, entry_price, exit_price, profit_pct, reason, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.Symbol, t.Quantity, t.EntryPrice, t.ExitPrice, t.ProfitPct, t.Reason, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
