package model

import "time"

// Default wallet caps applied to new members.
const (
	DefaultMonthlyPointsMax = 40
	DefaultWeekendSlotsMax  = 12
)

// Member is a studio user's accounting record.
type Member struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	MonthlyPoints    int       `json:"monthly_points"`
	MonthlyPointsMax int       `json:"monthly_points_max"`
	WeekendSlotsUsed int       `json:"weekend_slots_used"`
	WeekendSlotsMax  int       `json:"weekend_slots_max"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanAfford reports whether the wallet covers a charge of points
// plus peakCells against the weekly peak quota.
func (m *Member) CanAfford(points, peakCells int) bool {
	return m.MonthlyPoints >= points && m.WeekendSlotsUsed+peakCells <= m.WeekendSlotsMax
}

// PeakHeadroom returns how many peak cells the member may still book this week.
func (m *Member) PeakHeadroom() int {
	if m.WeekendSlotsUsed >= m.WeekendSlotsMax {
		return 0
	}
	return m.WeekendSlotsMax - m.WeekendSlotsUsed
}
