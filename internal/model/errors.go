package model

import (
	"errors"
	"fmt"
	"time"
)

// Business-rule errors returned by the booking engine. Callers match
// with errors.Is; none of these are retryable except ErrStoreContention.
var (
	ErrInvalidRange       = errors.New("invalid time range")
	ErrMisalignedSlot     = errors.New("time not aligned to 30-minute slot")
	ErrPastSlot           = errors.New("slot is in the past")
	ErrSlotConflict       = errors.New("slot conflicts with an existing reservation")
	ErrTooFarAhead        = errors.New("slot is beyond the booking window")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrPeakQuotaExceeded  = errors.New("weekly peak slot quota exceeded")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyCancelled   = errors.New("reservation already cancelled")
	ErrStoreContention    = errors.New("store contention")
)

// SlotConflictError names the first reservation blocking a proposed range.
type SlotConflictError struct {
	ReservationID int64
	StartTime     time.Time
	EndTime       time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with reservation %d (%s to %s)",
		e.ReservationID,
		e.StartTime.Format("2006-01-02 15:04"),
		e.EndTime.Format("15:04"))
}

// Is makes the struct error match ErrSlotConflict under errors.Is.
func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}
