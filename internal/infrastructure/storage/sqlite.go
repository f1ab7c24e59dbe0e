package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// SQLiteStore persists the append-only trade log.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		size REAL NOT NULL,
		pnl REAL NOT NULL,
		fees REAL NOT NULL,
		duration_candles INTEGER NOT NULL,
		reason TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init trades schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveTrade(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trades (symbol, side, entry_price, exit_price, size, pnl, fees, duration_candles, reason, opened_at, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		rec.Symbol, string(rec.Side), rec.EntryPrice, rec.ExitPrice, rec.Size,
		rec.PnL, rec.Fees, rec.DurationCandles, string(rec.Reason),
		rec.OpenedAt, rec.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT id, symbol, side, entry_price, exit_price, size, pnl, fees, duration_candles, reason, opened_at, closed_at
			  FROM trades ORDER BY closed_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		rec := &domain.TradeRecord{}
		var side, reason string
		if err := rows.Scan(&rec.ID, &rec.Symbol, &side, &rec.EntryPrice, &rec.ExitPrice,
			&rec.Size, &rec.PnL, &rec.Fees, &rec.DurationCandles, &reason,
			&rec.OpenedAt, &rec.ClosedAt); err != nil {
			return nil, err
		}
		rec.Side = domain.Side(side)
		rec.Reason = domain.CloseReason(reason)
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
