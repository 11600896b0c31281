package model

import "time"

// SlotDuration is the fixed booking granularity.
const SlotDuration = 30 * time.Minute

// Reservation statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Reservation is one booked interval on the studio.
type Reservation struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	MemberID   int64     `json:"member_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	PointsCost int       `json:"points_cost"`
	PeakCells  int       `json:"peak_cells"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Duration returns the booked length.
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// SlotCount returns the number of half-hour cells covered.
func (r *Reservation) SlotCount() int {
	return int(r.Duration() / SlotDuration)
}

// OverlapsWith reports whether two intervals intersect.
// Intervals are half-open: touching boundaries do not overlap.
func (r *Reservation) OverlapsWith(other *Reservation) bool {
	return r.StartTime.Before(other.EndTime) && other.StartTime.Before(r.EndTime)
}

// Contains reports whether t falls inside [StartTime, EndTime).
func (r *Reservation) Contains(t time.Time) bool {
	return !t.Before(r.StartTime) && t.Before(r.EndTime)
}

// IsActive reports whether the reservation still blocks its interval.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusConfirmed
}
