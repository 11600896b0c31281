package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studiobook/internal/model"
)

// CreateMember inserts a member with a full monthly balance.
func (db *DB) CreateMember(ctx context.Context, m *model.Member) error {
	if m.MonthlyPointsMax <= 0 {
		m.MonthlyPointsMax = model.DefaultMonthlyPointsMax
	}
	if m.WeekendSlotsMax <= 0 {
		m.WeekendSlotsMax = model.DefaultWeekendSlotsMax
	}
	m.MonthlyPoints = m.MonthlyPointsMax

	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO members (name, monthly_points, monthly_points_max,
		                     weekend_slots_used, weekend_slots_max, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)`,
		m.Name, m.MonthlyPoints, m.MonthlyPointsMax, m.WeekendSlotsMax, now, now,
	)
	if err != nil {
		return classify(fmt.Errorf("create member: %w", err))
	}
	m.ID, err = res.LastInsertId()
	m.CreatedAt = now
	m.UpdatedAt = now
	return err
}

// GetMember returns a member's current wallet snapshot.
func (db *DB) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return scanMember(db.QueryRowContext(ctx, `
		SELECT id, name, monthly_points, monthly_points_max,
		       weekend_slots_used, weekend_slots_max, created_at, updated_at
		FROM members WHERE id = ?`, id))
}

func scanMember(row *sql.Row) (*model.Member, error) {
	var m model.Member
	err := row.Scan(&m.ID, &m.Name, &m.MonthlyPoints, &m.MonthlyPointsMax,
		&m.WeekendSlotsUsed, &m.WeekendSlotsMax, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

// ListMembers returns all members ordered by id.
func (db *DB) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, monthly_points, monthly_points_max,
		       weekend_slots_used, weekend_slots_max, created_at, updated_at
		FROM members ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.MonthlyPoints, &m.MonthlyPointsMax,
			&m.WeekendSlotsUsed, &m.WeekendSlotsMax, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ChargeWallet atomically debits points and consumes peak quota. The
// sufficiency check and the decrement are one conditional update; zero
// rows affected means the wallet no longer covers the charge, and the
// wallet snapshot is re-read to report which limit failed.
func (db *DB) ChargeWallet(ctx context.Context, memberID int64, points, peakCells int, reservationID *int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := chargeWalletTx(ctx, tx, memberID, points, peakCells, reservationID); err != nil {
		return err
	}
	return classify(tx.Commit())
}

func chargeWalletTx(ctx context.Context, tx *sql.Tx, memberID int64, points, peakCells int, reservationID *int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE members
		SET monthly_points = monthly_points - ?,
		    weekend_slots_used = weekend_slots_used + ?,
		    updated_at = ?
		WHERE id = ?
		  AND monthly_points >= ?
		  AND weekend_slots_used + ? <= weekend_slots_max`,
		points, peakCells, time.Now(), memberID, points, peakCells,
	)
	if err != nil {
		return classify(fmt.Errorf("charge wallet: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return chargeFailureReason(ctx, tx, memberID, points, peakCells)
	}

	return appendLedgerTx(ctx, tx, &model.LedgerEntry{
		MemberID:      memberID,
		Kind:          model.LedgerCharge,
		DeltaPoints:   -points,
		DeltaPeak:     peakCells,
		ReservationID: reservationID,
	})
}

// chargeFailureReason inspects the wallet row to tell a short balance
// apart from an exhausted peak quota (or a missing member).
func chargeFailureReason(ctx context.Context, tx *sql.Tx, memberID int64, points, peakCells int) error {
	var balance, used, max int
	err := tx.QueryRowContext(ctx,
		"SELECT monthly_points, weekend_slots_used, weekend_slots_max FROM members WHERE id = ?",
		memberID,
	).Scan(&balance, &used, &max)
	if err != nil {
		return classify(err)
	}
	if balance < points {
		return model.ErrInsufficientPoints
	}
	if used+peakCells > max {
		return model.ErrPeakQuotaExceeded
	}
	return model.ErrStoreContention
}

// RefundWallet restores points and peak quota; it never fails on bounds.
// Restoration clamps to [0, cap] instead of erroring.
func (db *DB) RefundWallet(ctx context.Context, memberID int64, points, peakCells int, reservationID *int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := refundWalletTx(ctx, tx, memberID, points, peakCells, reservationID); err != nil {
		return err
	}
	return classify(tx.Commit())
}

func refundWalletTx(ctx context.Context, tx *sql.Tx, memberID int64, points, peakCells int, reservationID *int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE members
		SET monthly_points = MIN(monthly_points + ?, monthly_points_max),
		    weekend_slots_used = MAX(weekend_slots_used - ?, 0),
		    updated_at = ?
		WHERE id = ?`,
		points, peakCells, time.Now(), memberID,
	)
	if err != nil {
		return classify(fmt.Errorf("refund wallet: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrNotFound
	}

	return appendLedgerTx(ctx, tx, &model.LedgerEntry{
		MemberID:      memberID,
		Kind:          model.LedgerRefund,
		DeltaPoints:   points,
		DeltaPeak:     -peakCells,
		ReservationID: reservationID,
	})
}

// SetCap updates the monthly point cap. Raising the cap leaves the
// balance untouched; lowering it clamps the balance down so the wallet
// invariant holds after commit.
func (db *DB) SetCap(ctx context.Context, memberID int64, newMax int) error {
	if newMax <= 0 {
		return fmt.Errorf("%w: cap must be positive", model.ErrInvalidRange)
	}
	return db.adminCapUpdate(ctx, memberID, `
		UPDATE members
		SET monthly_points_max = ?,
		    monthly_points = MIN(monthly_points, ?),
		    updated_at = ?
		WHERE id = ?`,
		newMax, newMax, time.Now(), memberID)
}

// SetPeakCap updates the weekly peak quota cap. Current usage is never
// rewritten: lowering the cap below usage only blocks further peak
// bookings until the weekly reset.
func (db *DB) SetPeakCap(ctx context.Context, memberID int64, newMax int) error {
	if newMax <= 0 {
		return fmt.Errorf("%w: cap must be positive", model.ErrInvalidRange)
	}
	return db.adminCapUpdate(ctx, memberID, `
		UPDATE members
		SET weekend_slots_max = ?, updated_at = ?
		WHERE id = ?`,
		newMax, time.Now(), memberID)
}

func (db *DB) adminCapUpdate(ctx context.Context, memberID int64, query string, args ...interface{}) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(fmt.Errorf("set cap: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrNotFound
	}

	entry := &model.LedgerEntry{MemberID: memberID, Kind: model.LedgerAdminCap}
	if err := appendLedgerTx(ctx, tx, entry); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// SetCapAll applies a monthly cap to every member.
func (db *DB) SetCapAll(ctx context.Context, newMax int) (int, error) {
	if newMax <= 0 {
		return 0, fmt.Errorf("%w: cap must be positive", model.ErrInvalidRange)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE members
		SET monthly_points_max = ?,
		    monthly_points = MIN(monthly_points, ?),
		    updated_at = ?`,
		newMax, newMax, time.Now(),
	)
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// SetPeakCapAll applies a weekly peak quota cap to every member.
func (db *DB) SetPeakCapAll(ctx context.Context, newMax int) (int, error) {
	if newMax <= 0 {
		return 0, fmt.Errorf("%w: cap must be positive", model.ErrInvalidRange)
	}
	res, err := db.ExecContext(ctx,
		"UPDATE members SET weekend_slots_max = ?, updated_at = ?", newMax, time.Now())
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ResetMonthly restores one member's balance to their cap.
func (db *DB) ResetMonthly(ctx context.Context, memberID int64) error {
	return db.resetMember(ctx, memberID, model.LedgerResetMonthly,
		"UPDATE members SET monthly_points = monthly_points_max, updated_at = ? WHERE id = ?")
}

// ResetWeekly zeroes one member's weekly peak quota usage.
func (db *DB) ResetWeekly(ctx context.Context, memberID int64) error {
	return db.resetMember(ctx, memberID, model.LedgerResetWeekly,
		"UPDATE members SET weekend_slots_used = 0, updated_at = ? WHERE id = ?")
}

func (db *DB) resetMember(ctx context.Context, memberID int64, kind, query string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, time.Now(), memberID)
	if err != nil {
		return classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrNotFound
	}
	if err := appendLedgerTx(ctx, tx, &model.LedgerEntry{MemberID: memberID, Kind: kind}); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// ResetMonthlyAll restores all balances to their caps.
func (db *DB) ResetMonthlyAll(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE members SET monthly_points = monthly_points_max, updated_at = ?", time.Now())
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ResetWeeklyAll zeroes peak quota usage for all members.
func (db *DB) ResetWeeklyAll(ctx context.Context) (int, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE members SET weekend_slots_used = 0, updated_at = ?", time.Now())
	if err != nil {
		return 0, classify(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
