package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

func appendLedgerTx(ctx context.Context, tx *sql.Tx, e *model.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (member_id, kind, delta_points, delta_peak, reservation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.MemberID, e.Kind, e.DeltaPoints, e.DeltaPeak, e.ReservationID, time.Now(),
	)
	if err != nil {
		return classify(fmt.Errorf("append ledger entry: %w", err))
	}
	return nil
}

// ListLedgerEntries returns a member's wallet journal, newest first.
func (db *DB) ListLedgerEntries(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, member_id, kind, delta_points, delta_peak, reservation_id, created_at
		FROM ledger_entries
		WHERE member_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var resID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Kind, &e.DeltaPoints,
			&e.DeltaPeak, &resID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if resID.Valid {
			e.ReservationID = &resID.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
