package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TryBeginEpoch records that a reset period is being applied. It returns
// true exactly once per (kind, periodKey) pair: a second call for the
// same period hits the primary key and returns false, which is what
// keeps the reset scheduler idempotent across re-runs and restarts.
func (db *DB) TryBeginEpoch(ctx context.Context, kind, periodKey string) (bool, error) {
	res, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO reset_epochs (kind, period_key, applied_at) VALUES (?, ?, ?)",
		kind, periodKey, time.Now(),
	)
	if err != nil {
		return false, classify(fmt.Errorf("begin epoch: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseEpoch removes a claimed period so it can be claimed again.
// Used when the reset behind a claim failed and must be retried.
func (db *DB) ReleaseEpoch(ctx context.Context, kind, periodKey string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM reset_epochs WHERE kind = ? AND period_key = ?",
		kind, periodKey,
	)
	if err != nil {
		return classify(fmt.Errorf("release epoch: %w", err))
	}
	return nil
}

// LastEpoch returns the most recently applied period key for a reset kind,
// or "" when none has been applied yet.
func (db *DB) LastEpoch(ctx context.Context, kind string) (string, error) {
	var key string
	err := db.QueryRowContext(ctx,
		"SELECT period_key FROM reset_epochs WHERE kind = ? ORDER BY applied_at DESC LIMIT 1",
		kind,
	).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}
