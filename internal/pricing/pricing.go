// Package pricing maps half-hour booking cells to point cost tiers.
//
// A cell is classified solely by its own start instant's day-of-week and
// hour in the instant's location; a range spanning midnight is priced
// cell by cell. Callers are expected to normalize instants to the studio
// timezone before pricing.
package pricing

import (
	"time"

	"studiobook/internal/model"
)

// Point costs per tier.
const (
	CostDaytime = 1 // Mon-Fri 09:00-17:00
	CostEvening = 2 // Mon-Thu 17:00-21:00
	CostPeak    = 3 // Fri from 17:00, all Sat/Sun
)

// Cell is the price classification of a single half-hour cell.
type Cell struct {
	Cost   int
	IsPeak bool
}

// RangeQuote is the accumulated price of a booking range.
type RangeQuote struct {
	TotalCost int
	PeakCells int
}

// Aligned reports whether t sits exactly on a 30-minute boundary.
func Aligned(t time.Time) bool {
	return t.Minute()%30 == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// PriceCell classifies the cell starting at t. Total over any instant.
func PriceCell(t time.Time) Cell {
	wd := t.Weekday()
	h := t.Hour()

	switch {
	case wd == time.Saturday || wd == time.Sunday:
		return Cell{Cost: CostPeak, IsPeak: true}
	case wd == time.Friday && h >= 17:
		return Cell{Cost: CostPeak, IsPeak: true}
	case h >= 9 && h < 17:
		return Cell{Cost: CostDaytime}
	case h >= 17 && h < 21:
		// Mon-Thu evening; Friday evenings are already peak above.
		return Cell{Cost: CostEvening}
	default:
		// Remaining weekday off-hours are charged at the base tier.
		return Cell{Cost: CostDaytime}
	}
}

// PriceRange sums PriceCell over every consecutive 30-minute cell in
// [start, end). An empty or misaligned range is not quotable and fails
// as an invalid range; misalignment as its own error kind is the
// validator's concern.
func PriceRange(start, end time.Time) (RangeQuote, error) {
	if !start.Before(end) {
		return RangeQuote{}, model.ErrInvalidRange
	}
	if !Aligned(start) || !Aligned(end) {
		return RangeQuote{}, model.ErrInvalidRange
	}

	var quote RangeQuote
	for cursor := start; cursor.Before(end); cursor = cursor.Add(model.SlotDuration) {
		cell := PriceCell(cursor)
		quote.TotalCost += cell.Cost
		if cell.IsPeak {
			quote.PeakCells++
		}
	}
	return quote, nil
}
