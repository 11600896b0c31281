package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// BookReservation commits a priced booking as one unit: the overlap
// re-check, the wallet debit and the reservation insert share a single
// immediate transaction, so two racing bookings for the same range
// serialize on the store and at most one commits.
//
// The caller is expected to have validated and priced the range; this
// method re-checks conflicts authoritatively and fills res.ID, Status
// and timestamps on success.
func (db *DB) BookReservation(ctx context.Context, res *model.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if conflict, err := firstConflictTx(ctx, tx, res.StartTime, res.EndTime); err != nil {
		return err
	} else if conflict != nil {
		return &model.SlotConflictError{
			ReservationID: conflict.ID,
			StartTime:     conflict.StartTime,
			EndTime:       conflict.EndTime,
		}
	}

	now := time.Now()
	insert, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (reference, member_id, start_time, end_time,
		                          points_cost, peak_cells, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.Reference, res.MemberID, res.StartTime, res.EndTime,
		res.PointsCost, res.PeakCells, model.StatusConfirmed, now, now,
	)
	if err != nil {
		return classify(fmt.Errorf("insert reservation: %w", err))
	}
	id, err := insert.LastInsertId()
	if err != nil {
		return err
	}

	if err := chargeWalletTx(ctx, tx, res.MemberID, res.PointsCost, res.PeakCells, &id); err != nil {
		return err
	}

	if err := classify(tx.Commit()); err != nil {
		return err
	}

	res.ID = id
	res.Status = model.StatusConfirmed
	res.CreatedAt = now
	res.UpdatedAt = now
	return nil
}

// CancelReservation marks a reservation cancelled and credits the refund
// in the same transaction. The status check inside the transaction makes
// double cancellation impossible even under concurrent calls.
func (db *DB) CancelReservation(ctx context.Context, id int64, refundPoints, refundPeakCells int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	var status string
	var memberID int64
	err = tx.QueryRowContext(ctx,
		"SELECT member_id, status FROM reservations WHERE id = ?", id,
	).Scan(&memberID, &status)
	if err != nil {
		return classify(err)
	}
	if status == model.StatusCancelled {
		return model.ErrAlreadyCancelled
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?",
		model.StatusCancelled, time.Now(), id,
	); err != nil {
		return classify(fmt.Errorf("cancel reservation: %w", err))
	}

	if err := refundWalletTx(ctx, tx, memberID, refundPoints, refundPeakCells, &id); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// GetReservation loads one reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	return scanReservationRow(db.QueryRowContext(ctx, `
		SELECT id, reference, member_id, start_time, end_time,
		       points_cost, peak_cells, status, created_at, updated_at
		FROM reservations WHERE id = ?`, id))
}

// GetReservationByReference loads one reservation by its public reference.
func (db *DB) GetReservationByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	return scanReservationRow(db.QueryRowContext(ctx, `
		SELECT id, reference, member_id, start_time, end_time,
		       points_cost, peak_cells, status, created_at, updated_at
		FROM reservations WHERE reference = ?`, reference))
}

func scanReservationRow(row *sql.Row) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(&r.ID, &r.Reference, &r.MemberID, &r.StartTime, &r.EndTime,
		&r.PointsCost, &r.PeakCells, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

// ListConfirmedInWindow returns confirmed reservations intersecting
// [from, to), ordered by start time.
func (db *DB) ListConfirmedInWindow(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	return db.listReservations(ctx, `
		SELECT id, reference, member_id, start_time, end_time,
		       points_cost, peak_cells, status, created_at, updated_at
		FROM reservations
		WHERE status = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time`,
		model.StatusConfirmed, to, from)
}

// ListMemberReservations returns all of a member's reservations, newest first.
func (db *DB) ListMemberReservations(ctx context.Context, memberID int64) ([]model.Reservation, error) {
	return db.listReservations(ctx, `
		SELECT id, reference, member_id, start_time, end_time,
		       points_cost, peak_cells, status, created_at, updated_at
		FROM reservations
		WHERE member_id = ?
		ORDER BY start_time DESC`,
		memberID)
}

// ListReservationsInWindow returns every reservation (any status)
// intersecting [from, to), for reporting.
func (db *DB) ListReservationsInWindow(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	return db.listReservations(ctx, `
		SELECT id, reference, member_id, start_time, end_time,
		       points_cost, peak_cells, status, created_at, updated_at
		FROM reservations
		WHERE start_time < ? AND end_time > ?
		ORDER BY start_time`,
		to, from)
}

func (db *DB) listReservations(ctx context.Context, query string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.Reference, &r.MemberID, &r.StartTime, &r.EndTime,
			&r.PointsCost, &r.PeakCells, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// firstConflictTx returns the earliest confirmed reservation overlapping
// [start, end), evaluated inside the booking transaction.
func firstConflictTx(ctx context.Context, tx *sql.Tx, start, end time.Time) (*model.Reservation, error) {
	var r model.Reservation
	err := tx.QueryRowContext(ctx, `
		SELECT id, start_time, end_time FROM reservations
		WHERE status = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time
		LIMIT 1`,
		model.StatusConfirmed, end, start,
	).Scan(&r.ID, &r.StartTime, &r.EndTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &r, nil
}
