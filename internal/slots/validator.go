// Package slots validates proposed booking ranges against the studio's
// existing reservations and generates availability views for callers.
package slots

import (
	"time"

	"studiobook/internal/model"
	"studiobook/internal/pricing"
)

// Rules holds the configurable booking window limits.
// A zero MaxAdvance disables the far-future check.
type Rules struct {
	MaxAdvance time.Duration
}

// Validate checks a proposed [start, end) range, short-circuiting on the
// first failure: range order, slot alignment, not in the past, booking
// window, then overlap against confirmed reservations. Overlap uses
// half-open semantics: a reservation ending at the proposed start does
// not conflict.
func (r Rules) Validate(existing []model.Reservation, start, end, now time.Time) error {
	if !start.Before(end) {
		return model.ErrInvalidRange
	}
	if !pricing.Aligned(start) || !pricing.Aligned(end) {
		return model.ErrMisalignedSlot
	}
	if start.Before(now) {
		return model.ErrPastSlot
	}
	if r.MaxAdvance > 0 && start.After(now.Add(r.MaxAdvance)) {
		return model.ErrTooFarAhead
	}

	if conflict := firstConflict(existing, start, end); conflict != nil {
		return &model.SlotConflictError{
			ReservationID: conflict.ID,
			StartTime:     conflict.StartTime,
			EndTime:       conflict.EndTime,
		}
	}
	return nil
}

// Validate applies the default rules (no booking window limit).
func Validate(existing []model.Reservation, start, end, now time.Time) error {
	return Rules{}.Validate(existing, start, end, now)
}

// firstConflict returns the earliest-starting confirmed reservation
// intersecting [start, end), or nil.
func firstConflict(existing []model.Reservation, start, end time.Time) *model.Reservation {
	var found *model.Reservation
	for i := range existing {
		res := &existing[i]
		if !res.IsActive() {
			continue
		}
		if res.StartTime.Before(end) && start.Before(res.EndTime) {
			if found == nil || res.StartTime.Before(found.StartTime) {
				found = res
			}
		}
	}
	return found
}

// CellInfo describes one half-hour cell of a day for availability views.
type CellInfo struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Cost      int       `json:"cost"`
	IsPeak    bool      `json:"is_peak"`
	Available bool      `json:"available"`
}

// DayCells generates all 48 cells of the calendar day containing date,
// priced and marked unavailable when booked or already past.
func DayCells(date time.Time, existing []model.Reservation, now time.Time) []CellInfo {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var cells []CellInfo
	for cursor := dayStart; cursor.Before(dayEnd); cursor = cursor.Add(model.SlotDuration) {
		cellEnd := cursor.Add(model.SlotDuration)
		cell := pricing.PriceCell(cursor)

		booked := firstConflict(existing, cursor, cellEnd) != nil
		past := cursor.Before(now)

		cells = append(cells, CellInfo{
			Start:     cursor,
			End:       cellEnd,
			Cost:      cell.Cost,
			IsPeak:    cell.IsPeak,
			Available: !booked && !past,
		})
	}
	return cells
}
