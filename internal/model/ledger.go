package model

import "time"

// Ledger entry kinds.
const (
	LedgerCharge       = "charge"
	LedgerRefund       = "refund"
	LedgerResetMonthly = "reset_monthly"
	LedgerResetWeekly  = "reset_weekly"
	LedgerAdminCap     = "admin_cap"
)

// LedgerEntry records one wallet mutation for audit.
// DeltaPoints and DeltaPeak are signed: a charge is negative points,
// a refund positive.
type LedgerEntry struct {
	ID            int64     `json:"id"`
	MemberID      int64     `json:"member_id"`
	Kind          string    `json:"kind"`
	DeltaPoints   int       `json:"delta_points"`
	DeltaPeak     int       `json:"delta_peak"`
	ReservationID *int64    `json:"reservation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
