package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestReservation_Duration(t *testing.T) {
	r := Reservation{
		StartTime: datetime(2026, 3, 9, 10, 0),
		EndTime:   datetime(2026, 3, 9, 12, 30),
	}
	assert.Equal(t, 2*time.Hour+30*time.Minute, r.Duration())
}

func TestReservation_SlotCount(t *testing.T) {
	r := Reservation{
		StartTime: datetime(2026, 3, 9, 10, 0),
		EndTime:   datetime(2026, 3, 9, 12, 0),
	}
	assert.Equal(t, 4, r.SlotCount())
}

func TestReservation_OverlapsWith(t *testing.T) {
	existing := Reservation{
		StartTime: datetime(2026, 3, 9, 10, 0),
		EndTime:   datetime(2026, 3, 9, 14, 0),
	}

	// Touching boundaries do not overlap.
	before := Reservation{
		StartTime: datetime(2026, 3, 9, 8, 0),
		EndTime:   datetime(2026, 3, 9, 10, 0),
	}
	assert.False(t, existing.OverlapsWith(&before))

	after := Reservation{
		StartTime: datetime(2026, 3, 9, 14, 0),
		EndTime:   datetime(2026, 3, 9, 16, 0),
	}
	assert.False(t, existing.OverlapsWith(&after))

	during := Reservation{
		StartTime: datetime(2026, 3, 9, 12, 0),
		EndTime:   datetime(2026, 3, 9, 16, 0),
	}
	assert.True(t, existing.OverlapsWith(&during))

	contained := Reservation{
		StartTime: datetime(2026, 3, 9, 11, 0),
		EndTime:   datetime(2026, 3, 9, 13, 0),
	}
	assert.True(t, existing.OverlapsWith(&contained))
}

func TestReservation_Contains(t *testing.T) {
	r := Reservation{
		StartTime: datetime(2026, 3, 9, 10, 0),
		EndTime:   datetime(2026, 3, 9, 14, 0),
	}

	assert.True(t, r.Contains(datetime(2026, 3, 9, 10, 0)))
	assert.True(t, r.Contains(datetime(2026, 3, 9, 12, 0)))
	assert.False(t, r.Contains(datetime(2026, 3, 9, 14, 0)))
	assert.False(t, r.Contains(datetime(2026, 3, 9, 9, 0)))
}

func TestMember_CanAfford(t *testing.T) {
	m := Member{
		MonthlyPoints:    5,
		MonthlyPointsMax: 40,
		WeekendSlotsUsed: 10,
		WeekendSlotsMax:  12,
	}

	assert.True(t, m.CanAfford(5, 2))
	assert.False(t, m.CanAfford(6, 0))
	assert.False(t, m.CanAfford(1, 3))
	assert.Equal(t, 2, m.PeakHeadroom())

	m.WeekendSlotsUsed = 12
	assert.Equal(t, 0, m.PeakHeadroom())
}
