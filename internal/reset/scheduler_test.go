package reset

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ResetMonthlyAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) ResetWeeklyAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// fakeEpochs mimics the store's INSERT OR IGNORE semantics in memory.
type fakeEpochs struct {
	applied map[string]bool
}

func newFakeEpochs() *fakeEpochs {
	return &fakeEpochs{applied: make(map[string]bool)}
}

func (f *fakeEpochs) TryBeginEpoch(_ context.Context, kind, periodKey string) (bool, error) {
	key := kind + "/" + periodKey
	if f.applied[key] {
		return false, nil
	}
	f.applied[key] = true
	return true, nil
}

func (f *fakeEpochs) ReleaseEpoch(_ context.Context, kind, periodKey string) error {
	delete(f.applied, kind+"/"+periodKey)
	return nil
}

func newTestScheduler(t *testing.T, ledger *mockLedger, epochs EpochStore, at time.Time) *Scheduler {
	t.Helper()
	logger := zerolog.New(io.Discard)
	s, err := NewScheduler(DefaultConfig(), ledger, epochs, &logger)
	require.NoError(t, err)
	s.now = func() time.Time { return at }
	return s
}

func TestRunOnce_AppliesBothResets(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	// Monday 2026-03-02, also a fresh month for the epoch table.
	s := newTestScheduler(t, ledger, newFakeEpochs(), time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))

	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()

	s.RunOnce(ctx)
	ledger.AssertExpectations(t)
}

func TestRunOnce_IdempotentWithinPeriod(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	s := newTestScheduler(t, ledger, newFakeEpochs(), time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))

	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()

	// Running twice in the same period must not double-reset.
	s.RunOnce(ctx)
	s.RunOnce(ctx)
	ledger.AssertExpectations(t)
}

func TestRunOnce_NewWeekTriggersWeeklyOnly(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	epochs := newFakeEpochs()

	// First run mid-March.
	s := newTestScheduler(t, ledger, epochs, time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC))
	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	// A week later, still March: weekly fires again, monthly does not.
	s.now = func() time.Time { return time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC) }
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	ledger.AssertExpectations(t)
}

func TestRunOnce_NewMonthTriggersMonthly(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	epochs := newFakeEpochs()

	s := newTestScheduler(t, ledger, epochs, time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC))
	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	// April 1st falls in the same ISO week, so only monthly fires.
	s.now = func() time.Time { return time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC) }
	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	ledger.AssertExpectations(t)
}

func TestRunOnce_FailedResetRetriesNextTick(t *testing.T) {
	ctx := context.Background()
	ledger := new(mockLedger)
	epochs := newFakeEpochs()
	s := newTestScheduler(t, ledger, epochs, time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC))

	// First tick: monthly reset fails, weekly succeeds. The failed
	// monthly claim must be given back so the period is not lost.
	ledger.On("ResetMonthlyAll", ctx).Return(0, assert.AnError).Once()
	ledger.On("ResetWeeklyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	// Next tick in the same period: monthly is retried, weekly is not.
	ledger.On("ResetMonthlyAll", ctx).Return(5, nil).Once()
	s.RunOnce(ctx)

	// Third tick: both epochs are now settled, nothing fires again.
	s.RunOnce(ctx)
	ledger.AssertExpectations(t)
	ledger.AssertNumberOfCalls(t, "ResetMonthlyAll", 2)
	ledger.AssertNumberOfCalls(t, "ResetWeeklyAll", 1)
}

func TestPeriodKeys(t *testing.T) {
	assert.Equal(t, "2026-03", MonthKey(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))

	// Monday starts a new ISO week.
	sunday := time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, WeekKey(sunday), WeekKey(monday))
	assert.Equal(t, "2026-W11", WeekKey(monday))
}
