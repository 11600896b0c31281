// Package database is the transactional store of record. The studio's
// reservation calendar and the member wallets live here exclusively;
// nothing is cached and mutated in-process across requests.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"studiobook/internal/model"
)

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and runs migrations. The connection
// uses a busy timeout so that writer contention shows up as SQLITE_BUSY
// only after a short wait, which callers map to a retryable error.
func NewDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=2000&_foreign_keys=on&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Members with their wallet fields
		`CREATE TABLE IF NOT EXISTS members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			monthly_points INTEGER NOT NULL,
			monthly_points_max INTEGER NOT NULL,
			weekend_slots_used INTEGER NOT NULL DEFAULT 0,
			weekend_slots_max INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK (monthly_points >= 0),
			CHECK (monthly_points <= monthly_points_max),
			CHECK (weekend_slots_used >= 0)
		)`,

		// Reservations; cancelled rows are kept for history
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			member_id INTEGER NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			points_cost INTEGER NOT NULL,
			peak_cells INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'confirmed',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (member_id) REFERENCES members(id)
		)`,

		// Wallet mutation journal
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			member_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			delta_points INTEGER NOT NULL,
			delta_peak INTEGER NOT NULL DEFAULT 0,
			reservation_id INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (member_id) REFERENCES members(id),
			FOREIGN KEY (reservation_id) REFERENCES reservations(id)
		)`,

		// Periodic reset bookkeeping; one row per applied period
		`CREATE TABLE IF NOT EXISTS reset_epochs (
			kind TEXT NOT NULL,
			period_key TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (kind, period_key)
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_reservations_times ON reservations(start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_member ON reservations(member_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_member ON ledger_entries(member_id, created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// classify maps driver-level errors to the engine's taxonomy. Busy and
// locked errors become the retryable contention error; everything else
// passes through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", model.ErrStoreContention, err)
		}
	}
	return err
}
