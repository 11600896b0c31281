// Package booking orchestrates the reservation workflow: validation,
// pricing, the atomic wallet debit plus reservation insert, and
// cancellation with time-tiered refunds.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studiobook/internal/metrics"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
	"studiobook/internal/slots"
)

// Refund tiering: full refund at or beyond this lead time, half below it.
const (
	fullRefundLeadTime = 24 * time.Hour

	defaultMaxRetries = 3
	defaultRetryBase  = 25 * time.Millisecond
)

// Store is the transactional persistence surface the workflow needs.
// BookReservation and CancelReservation are atomic units: the wallet
// mutation and the reservation row commit or abort together.
type Store interface {
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListConfirmedInWindow(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListMemberReservations(ctx context.Context, memberID int64) ([]model.Reservation, error)
	BookReservation(ctx context.Context, res *model.Reservation) error
	CancelReservation(ctx context.Context, id int64, refundPoints, refundPeakCells int) error
}

// EventBus publishes booking lifecycle events for the change feed.
type EventBus interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Service is the booking workflow.
type Service struct {
	store      Store
	bus        EventBus
	rules      slots.Rules
	loc        *time.Location
	logger     *zerolog.Logger
	maxRetries int
	retryBase  time.Duration
	now        func() time.Time
}

// NewService creates the booking workflow. loc is the studio timezone
// used for tier classification; bus may be nil.
func NewService(store Store, bus EventBus, rules slots.Rules, loc *time.Location, logger *zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:      store,
		bus:        bus,
		rules:      rules,
		loc:        loc,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		now:        time.Now,
	}
}

// Book runs the full booking workflow for [start, end): validate the
// range against existing reservations, price every cell, then debit the
// wallet and insert the reservation as one transaction. Validation,
// pricing and wallet failures propagate unchanged; only store
// contention is retried.
func (s *Service) Book(ctx context.Context, memberID int64, start, end time.Time) (*model.Reservation, error) {
	start = start.In(s.loc)
	end = end.In(s.loc)
	now := s.now().In(s.loc)

	existing, err := s.store.ListConfirmedInWindow(ctx, start, end)
	if err != nil {
		metrics.IncBookingOutcome("store_error")
		return nil, err
	}
	if err := s.rules.Validate(existing, start, end, now); err != nil {
		metrics.IncBookingOutcome("rejected_validation")
		return nil, err
	}

	quote, err := pricing.PriceRange(start, end)
	if err != nil {
		metrics.IncBookingOutcome("rejected_pricing")
		return nil, err
	}

	res := &model.Reservation{
		Reference:  uuid.NewString(),
		MemberID:   memberID,
		StartTime:  start,
		EndTime:    end,
		PointsCost: quote.TotalCost,
		PeakCells:  quote.PeakCells,
	}

	err = s.withRetry(ctx, func() error {
		return s.store.BookReservation(ctx, res)
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSlotConflict):
			metrics.IncBookingOutcome("rejected_conflict")
		case errors.Is(err, model.ErrInsufficientPoints), errors.Is(err, model.ErrPeakQuotaExceeded):
			metrics.IncBookingOutcome("rejected_wallet")
		default:
			metrics.IncBookingOutcome("store_error")
		}
		return nil, err
	}

	metrics.IncBookingOutcome("committed")
	metrics.AddPointsCharged(res.PointsCost)
	s.logger.Info().
		Int64("reservation_id", res.ID).
		Int64("member_id", memberID).
		Time("start", start).
		Time("end", end).
		Int("points", res.PointsCost).
		Int("peak_cells", res.PeakCells).
		Msg("reservation committed")

	s.publish(events(res, "created"))
	return res, nil
}

// Cancel marks a reservation cancelled and refunds the wallet in one
// transaction. The refund is tiered on lead time: 100% at 24h or more
// before start, 50% (rounded up) below that. The peak cells originally
// charged are always returned in full.
func (s *Service) Cancel(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	res, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status == model.StatusCancelled {
		return nil, model.ErrAlreadyCancelled
	}

	now := s.now()
	refundPoints := RefundPoints(res.PointsCost, res.StartTime, now)

	err = s.withRetry(ctx, func() error {
		return s.store.CancelReservation(ctx, reservationID, refundPoints, res.PeakCells)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCancelled()
	metrics.AddPointsRefunded(refundPoints)
	s.logger.Info().
		Int64("reservation_id", reservationID).
		Int64("member_id", res.MemberID).
		Int("refund_points", refundPoints).
		Int("refund_peak_cells", res.PeakCells).
		Msg("reservation cancelled")

	res.Status = model.StatusCancelled
	s.publish(events(res, "cancelled"))
	return res, nil
}

// RefundPoints computes the tiered refund for cancelling a reservation
// of cost points that starts at start, as of now.
func RefundPoints(cost int, start, now time.Time) int {
	if start.Sub(now) >= fullRefundLeadTime {
		return cost
	}
	// ceil(cost * 0.5) without touching floats
	return (cost + 1) / 2
}

// GetWallet returns the member's current wallet snapshot.
func (s *Service) GetWallet(ctx context.Context, memberID int64) (*model.Member, error) {
	return s.store.GetMember(ctx, memberID)
}

// MemberReservations returns a member's booking history, newest first.
func (s *Service) MemberReservations(ctx context.Context, memberID int64) ([]model.Reservation, error) {
	return s.store.ListMemberReservations(ctx, memberID)
}

// DayAvailability returns the priced availability grid for the calendar
// day containing date, in the studio timezone.
func (s *Service) DayAvailability(ctx context.Context, date time.Time) ([]slots.CellInfo, error) {
	date = date.In(s.loc)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	existing, err := s.store.ListConfirmedInWindow(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return slots.DayCells(dayStart, existing, s.now().In(s.loc)), nil
}

// withRetry retries op a bounded number of times with doubling backoff,
// but only when the failure is store contention.
func (s *Service) withRetry(ctx context.Context, op func() error) error {
	backoff := s.retryBase
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncStoreRetry()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
		err = op()
		if !errors.Is(err, model.ErrStoreContention) {
			return err
		}
	}
	return err
}

type reservationEvent struct {
	Action      string    `json:"action"`
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	MemberID    int64     `json:"member_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	PointsCost  int       `json:"points_cost"`
	PeakCells   int       `json:"peak_cells"`
	PublishedAt time.Time `json:"published_at"`
}

func events(res *model.Reservation, action string) (string, reservationEvent) {
	eventType := "reservation." + action
	return eventType, reservationEvent{
		Action:      action,
		ID:          res.ID,
		Reference:   res.Reference,
		MemberID:    res.MemberID,
		StartTime:   res.StartTime,
		EndTime:     res.EndTime,
		PointsCost:  res.PointsCost,
		PeakCells:   res.PeakCells,
		PublishedAt: time.Now(),
	}
}

func (s *Service) publish(eventType string, payload reservationEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}
