// Package wallet implements the member points ledger: charges, refunds,
// periodic resets and admin cap overrides. All mutations go through the
// transactional store; the service layers logging, metrics and the
// journal on top.
package wallet

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"studiobook/internal/metrics"
	"studiobook/internal/model"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	CreateMember(ctx context.Context, m *model.Member) error
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ListMembers(ctx context.Context) ([]model.Member, error)

	ChargeWallet(ctx context.Context, memberID int64, points, peakCells int, reservationID *int64) error
	RefundWallet(ctx context.Context, memberID int64, points, peakCells int, reservationID *int64) error

	SetCap(ctx context.Context, memberID int64, newMax int) error
	SetPeakCap(ctx context.Context, memberID int64, newMax int) error
	SetCapAll(ctx context.Context, newMax int) (int, error)
	SetPeakCapAll(ctx context.Context, newMax int) (int, error)

	ResetMonthly(ctx context.Context, memberID int64) error
	ResetWeekly(ctx context.Context, memberID int64) error
	ResetMonthlyAll(ctx context.Context) (int, error)
	ResetWeeklyAll(ctx context.Context) (int, error)

	ListLedgerEntries(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error)
}

// Service is the wallet ledger.
type Service struct {
	store  Store
	logger *zerolog.Logger
}

// NewService creates a wallet service.
func NewService(store Store, logger *zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateMember provisions a new member with a full wallet.
func (s *Service) CreateMember(ctx context.Context, m *model.Member) error {
	if err := s.store.CreateMember(ctx, m); err != nil {
		return err
	}
	s.logger.Info().
		Int64("member_id", m.ID).
		Int("monthly_points_max", m.MonthlyPointsMax).
		Int("weekend_slots_max", m.WeekendSlotsMax).
		Msg("member created")
	return nil
}

// GetWallet returns the member's current wallet snapshot.
func (s *Service) GetWallet(ctx context.Context, memberID int64) (*model.Member, error) {
	return s.store.GetMember(ctx, memberID)
}

// ListMembers returns all members.
func (s *Service) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.store.ListMembers(ctx)
}

// GetLedger returns a member's recent wallet journal.
func (s *Service) GetLedger(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error) {
	return s.store.ListLedgerEntries(ctx, memberID, limit)
}

// Charge atomically debits points and peak quota. Fails without
// mutating state when the balance or the quota does not cover it.
func (s *Service) Charge(ctx context.Context, memberID int64, points, peakCells int) error {
	if err := s.store.ChargeWallet(ctx, memberID, points, peakCells, nil); err != nil {
		return err
	}
	metrics.AddPointsCharged(points)
	s.logger.Info().
		Int64("member_id", memberID).
		Int("points", points).
		Int("peak_cells", peakCells).
		Msg("wallet charged")
	return nil
}

// Refund restores points and quota, clamped to the wallet bounds.
func (s *Service) Refund(ctx context.Context, memberID int64, points, peakCells int) error {
	if err := s.store.RefundWallet(ctx, memberID, points, peakCells, nil); err != nil {
		return err
	}
	metrics.AddPointsRefunded(points)
	s.logger.Info().
		Int64("member_id", memberID).
		Int("points", points).
		Int("peak_cells", peakCells).
		Msg("wallet refunded")
	return nil
}

// SetCap overrides the monthly point cap for one member.
func (s *Service) SetCap(ctx context.Context, memberID int64, newMax int) error {
	if err := s.store.SetCap(ctx, memberID, newMax); err != nil {
		return err
	}
	s.logger.Info().Int64("member_id", memberID).Int("new_max", newMax).Msg("monthly cap updated")
	return nil
}

// SetPeakCap overrides the weekly peak quota cap for one member.
func (s *Service) SetPeakCap(ctx context.Context, memberID int64, newMax int) error {
	if err := s.store.SetPeakCap(ctx, memberID, newMax); err != nil {
		return err
	}
	s.logger.Info().Int64("member_id", memberID).Int("new_max", newMax).Msg("peak cap updated")
	return nil
}

// SetCapAll applies a monthly cap to every member.
func (s *Service) SetCapAll(ctx context.Context, newMax int) (int, error) {
	n, err := s.store.SetCapAll(ctx, newMax)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("members", n).Int("new_max", newMax).Msg("monthly cap updated for all members")
	return n, nil
}

// SetPeakCapAll applies a weekly peak quota cap to every member.
func (s *Service) SetPeakCapAll(ctx context.Context, newMax int) (int, error) {
	n, err := s.store.SetPeakCapAll(ctx, newMax)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int("members", n).Int("new_max", newMax).Msg("peak cap updated for all members")
	return n, nil
}

// ResetMonthly restores one member's balance to their cap.
func (s *Service) ResetMonthly(ctx context.Context, memberID int64) error {
	return s.store.ResetMonthly(ctx, memberID)
}

// ResetWeekly zeroes one member's peak quota usage.
func (s *Service) ResetWeekly(ctx context.Context, memberID int64) error {
	return s.store.ResetWeekly(ctx, memberID)
}

// ResetMonthlyAll restores every member's balance to their cap.
func (s *Service) ResetMonthlyAll(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.store.ResetMonthlyAll(ctx)
	if err != nil {
		return 0, err
	}
	metrics.IncReset("monthly")
	s.logger.Info().Int("members", n).Dur("took", time.Since(start)).Msg("monthly points reset")
	return n, nil
}

// ResetWeeklyAll zeroes every member's peak quota usage.
func (s *Service) ResetWeeklyAll(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.store.ResetWeeklyAll(ctx)
	if err != nil {
		return 0, err
	}
	metrics.IncReset("weekly")
	s.logger.Info().Int("members", n).Dur("took", time.Since(start)).Msg("weekly peak quota reset")
	return n, nil
}
