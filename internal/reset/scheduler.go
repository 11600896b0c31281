// Package reset runs the periodic wallet resets: monthly points back to
// cap on the 1st, weekly peak quota to zero on Mondays. Idempotency
// comes from the store's epoch table, so re-runs and restarts within
// the same period are no-ops.
package reset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Reset kinds recorded in the epoch table.
const (
	KindMonthly = "monthly"
	KindWeekly  = "weekly"
)

// Ledger performs the bulk wallet resets.
type Ledger interface {
	ResetMonthlyAll(ctx context.Context) (int, error)
	ResetWeeklyAll(ctx context.Context) (int, error)
}

// EpochStore tracks which reset periods have already been applied.
// ReleaseEpoch undoes a claim whose reset did not go through, so the
// next tick retries instead of skipping the period.
type EpochStore interface {
	TryBeginEpoch(ctx context.Context, kind, periodKey string) (bool, error)
	ReleaseEpoch(ctx context.Context, kind, periodKey string) error
}

// Config holds scheduler settings.
type Config struct {
	// Timezone the calendar boundaries are evaluated in.
	Timezone string
	// CheckInterval is how often the scheduler looks for a due reset.
	// Daily granularity is sufficient; the default checks hourly.
	CheckInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Timezone:      "UTC",
		CheckInterval: time.Hour,
	}
}

// Scheduler applies wallet resets at period boundaries.
type Scheduler struct {
	ledger   Ledger
	epochs   EpochStore
	location *time.Location
	interval time.Duration
	logger   *zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	now     func() time.Time
}

// NewScheduler creates a reset scheduler.
func NewScheduler(cfg Config, ledger Ledger, epochs EpochStore, logger *zerolog.Logger) (*Scheduler, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	return &Scheduler{
		ledger:   ledger,
		epochs:   epochs,
		location: loc,
		interval: cfg.CheckInterval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start begins the scheduler loop. It runs one check immediately so a
// restart never waits a full interval to catch up a missed boundary.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.location.String()).
		Dur("check_interval", s.interval).
		Msg("reset scheduler started")

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reset scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("reset scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// RunOnce applies any reset due for the current period. Safe to call
// repeatedly and from the admin surface: the epoch claim makes a second
// call within the same period a no-op.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.now().In(s.location)

	s.applyIfDue(ctx, KindMonthly, MonthKey(now), func() (int, error) {
		return s.ledger.ResetMonthlyAll(ctx)
	})
	s.applyIfDue(ctx, KindWeekly, WeekKey(now), func() (int, error) {
		return s.ledger.ResetWeeklyAll(ctx)
	})
}

func (s *Scheduler) applyIfDue(ctx context.Context, kind, periodKey string, apply func() (int, error)) {
	claimed, err := s.epochs.TryBeginEpoch(ctx, kind, periodKey)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("period", periodKey).Msg("epoch claim failed")
		return
	}
	if !claimed {
		return
	}

	n, err := apply()
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("period", periodKey).Msg("wallet reset failed")
		// Give the claim back; a claimed epoch with no applied reset
		// would silently skip the whole period.
		if relErr := s.epochs.ReleaseEpoch(ctx, kind, periodKey); relErr != nil {
			s.logger.Error().Err(relErr).Str("kind", kind).Str("period", periodKey).Msg("epoch release failed")
		}
		return
	}
	s.logger.Info().
		Str("kind", kind).
		Str("period", periodKey).
		Int("members", n).
		Msg("wallet reset applied")
}

// MonthKey identifies the calendar month containing t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// WeekKey identifies the ISO week containing t. ISO weeks start on
// Monday, which is exactly the weekly reset boundary.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
