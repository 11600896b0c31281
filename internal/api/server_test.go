package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studiobook/internal/model"
	"studiobook/internal/slots"
)

type mockBookings struct {
	mock.Mock
}

func (m *mockBookings) Book(ctx context.Context, memberID int64, start, end time.Time) (*model.Reservation, error) {
	args := m.Called(ctx, memberID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockBookings) Cancel(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Reservation), args.Error(1)
}

func (m *mockBookings) GetWallet(ctx context.Context, memberID int64) (*model.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Member), args.Error(1)
}

func (m *mockBookings) MemberReservations(ctx context.Context, memberID int64) ([]model.Reservation, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockBookings) DayAvailability(ctx context.Context, date time.Time) ([]slots.CellInfo, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]slots.CellInfo), args.Error(1)
}

type mockWallets struct {
	mock.Mock
}

func (m *mockWallets) CreateMember(ctx context.Context, member *model.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *mockWallets) ListMembers(ctx context.Context) ([]model.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Member), args.Error(1)
}

func (m *mockWallets) GetLedger(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error) {
	args := m.Called(ctx, memberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LedgerEntry), args.Error(1)
}

func (m *mockWallets) SetCap(ctx context.Context, memberID int64, newMax int) error {
	args := m.Called(ctx, memberID, newMax)
	return args.Error(0)
}

func (m *mockWallets) SetPeakCap(ctx context.Context, memberID int64, newMax int) error {
	args := m.Called(ctx, memberID, newMax)
	return args.Error(0)
}

func (m *mockWallets) SetCapAll(ctx context.Context, newMax int) (int, error) {
	args := m.Called(ctx, newMax)
	return args.Int(0), args.Error(1)
}

func (m *mockWallets) SetPeakCapAll(ctx context.Context, newMax int) (int, error) {
	args := m.Called(ctx, newMax)
	return args.Int(0), args.Error(1)
}

func (m *mockWallets) ResetMonthlyAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockWallets) ResetWeeklyAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockExport struct {
	mock.Mock
}

func (m *mockExport) ListReservationsInWindow(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Reservation), args.Error(1)
}

func (m *mockExport) ListMembers(ctx context.Context) ([]model.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Member), args.Error(1)
}

const testAdminKey = "test-admin-key"

func newTestServer(bookings *mockBookings, wallets *mockWallets, export *mockExport) *HTTPServer {
	logger := zerolog.Nop()
	cfg := Config{Port: 0, AdminKey: testAdminKey}
	return NewHTTPServer(cfg, bookings, wallets, export, &logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func adminHeaders() map[string]string {
	return map[string]string{"x-api-key": testAdminKey}
}

func TestHandleBook(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("created", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))

		res := &model.Reservation{
			ID:         1,
			Reference:  "ref-1",
			MemberID:   7,
			StartTime:  start,
			EndTime:    end,
			PointsCost: 2,
			Status:     model.StatusConfirmed,
		}
		bookings.On("Book", mock.Anything, int64(7), start, end).Return(res, nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings", BookRequest{
			MemberID:  7,
			StartTime: start,
			EndTime:   end,
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		var got model.Reservation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(1), got.ID)
		assert.Equal(t, 2, got.PointsCost)
		bookings.AssertExpectations(t)
	})

	t.Run("missing member id", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings", BookRequest{
			StartTime: start,
			EndTime:   end,
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		bookings.AssertNotCalled(t, "Book")
	})

	t.Run("method not allowed", func(t *testing.T) {
		srv := newTestServer(new(mockBookings), new(mockWallets), new(mockExport))
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/bookings", nil, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("domain errors map to statuses", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			code int
		}{
			{"misaligned", model.ErrMisalignedSlot, http.StatusBadRequest},
			{"past", model.ErrPastSlot, http.StatusBadRequest},
			{"conflict", &model.SlotConflictError{ReservationID: 3}, http.StatusConflict},
			{"insufficient points", model.ErrInsufficientPoints, http.StatusUnprocessableEntity},
			{"peak quota", model.ErrPeakQuotaExceeded, http.StatusUnprocessableEntity},
			{"contention", fmt.Errorf("book: %w", model.ErrStoreContention), http.StatusServiceUnavailable},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				bookings := new(mockBookings)
				srv := newTestServer(bookings, new(mockWallets), new(mockExport))
				bookings.On("Book", mock.Anything, int64(7), start, end).Return(nil, tc.err)

				rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings", BookRequest{
					MemberID:  7,
					StartTime: start,
					EndTime:   end,
				}, nil)

				assert.Equal(t, tc.code, rec.Code)
			})
		}
	})
}

func TestHandleCancel(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))

		res := &model.Reservation{ID: 5, Status: model.StatusCancelled}
		bookings.On("Cancel", mock.Anything, int64(5)).Return(res, nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings/cancel", CancelRequest{ReservationID: 5}, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var got model.Reservation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, model.StatusCancelled, got.Status)
	})

	t.Run("already cancelled is a conflict", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))
		bookings.On("Cancel", mock.Anything, int64(5)).Return(nil, model.ErrAlreadyCancelled)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings/cancel", CancelRequest{ReservationID: 5}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))
		bookings.On("Cancel", mock.Anything, int64(99)).Return(nil, model.ErrNotFound)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/bookings/cancel", CancelRequest{ReservationID: 99}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleWallet(t *testing.T) {
	t.Run("snapshot", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))

		member := &model.Member{ID: 7, Name: "Ann", MonthlyPoints: 38, MonthlyPointsMax: 40}
		bookings.On("GetWallet", mock.Anything, int64(7)).Return(member, nil)

		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/wallet?member_id=7", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var got model.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 38, got.MonthlyPoints)
	})

	t.Run("missing member id", func(t *testing.T) {
		srv := newTestServer(new(mockBookings), new(mockWallets), new(mockExport))
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/wallet", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleAvailability(t *testing.T) {
	t.Run("grid", func(t *testing.T) {
		bookings := new(mockBookings)
		srv := newTestServer(bookings, new(mockWallets), new(mockExport))

		date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		cells := []slots.CellInfo{{Start: date.Add(9 * time.Hour), Cost: 1}}
		bookings.On("DayAvailability", mock.Anything, date).Return(cells, nil)

		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/availability?date=2026-03-02", nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "2026-03-02")
	})

	t.Run("bad date", func(t *testing.T) {
		srv := newTestServer(new(mockBookings), new(mockWallets), new(mockExport))
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/availability?date=tomorrow", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminAuth(t *testing.T) {
	t.Run("missing key rejected", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))

		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/members", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		wallets.AssertNotCalled(t, "ListMembers")
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		srv := newTestServer(new(mockBookings), new(mockWallets), new(mockExport))
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/members", nil,
			map[string]string{"x-api-key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured key locks the surface", func(t *testing.T) {
		logger := zerolog.Nop()
		srv := NewHTTPServer(Config{AdminKey: ""}, new(mockBookings), new(mockWallets), new(mockExport), &logger)
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/members", nil,
			map[string]string{"x-api-key": ""})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleMembers(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))

		wallets.On("CreateMember", mock.Anything, mock.MatchedBy(func(m *model.Member) bool {
			return m.Name == "Ann" && m.MonthlyPointsMax == 50
		})).Return(nil).Run(func(args mock.Arguments) {
			args.Get(1).(*model.Member).ID = 3
		})

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/members", CreateMemberRequest{
			Name:             "Ann",
			MonthlyPointsMax: 50,
		}, adminHeaders())

		require.Equal(t, http.StatusCreated, rec.Code)
		var got model.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, int64(3), got.ID)
	})

	t.Run("name required", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/members", CreateMemberRequest{}, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		wallets.AssertNotCalled(t, "CreateMember")
	})

	t.Run("list", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("ListMembers", mock.Anything).Return([]model.Member{{ID: 1, Name: "Ann"}}, nil)

		rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/members", nil, adminHeaders())

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Ann")
	})
}

func TestHandleSetCap(t *testing.T) {
	t.Run("single member", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("SetCap", mock.Anything, int64(7), 50).Return(nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/caps/points", SetCapRequest{
			MemberID: 7,
			NewMax:   50,
		}, adminHeaders())

		require.Equal(t, http.StatusOK, rec.Code)
		wallets.AssertExpectations(t)
	})

	t.Run("all members", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("SetCapAll", mock.Anything, 30).Return(12, nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/caps/points", SetCapRequest{
			NewMax: 30,
		}, adminHeaders())

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"updated":12`)
	})

	t.Run("negative cap rejected", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/caps/points", SetCapRequest{
			MemberID: 7,
			NewMax:   -1,
		}, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		wallets.AssertNotCalled(t, "SetCap")
	})

	t.Run("peak cap routes to peak setter", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("SetPeakCap", mock.Anything, int64(7), 8).Return(nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/caps/peak", SetCapRequest{
			MemberID: 7,
			NewMax:   8,
		}, adminHeaders())

		require.Equal(t, http.StatusOK, rec.Code)
		wallets.AssertExpectations(t)
	})
}

func TestHandleManualReset(t *testing.T) {
	t.Run("monthly", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("ResetMonthlyAll", mock.Anything).Return(9, nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/reset", ResetRequest{Kind: "monthly"}, adminHeaders())

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"reset":9`)
	})

	t.Run("weekly", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))
		wallets.On("ResetWeeklyAll", mock.Anything).Return(9, nil)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/reset", ResetRequest{Kind: "weekly"}, adminHeaders())
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		wallets := new(mockWallets)
		srv := newTestServer(new(mockBookings), wallets, new(mockExport))

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/admin/reset", ResetRequest{Kind: "daily"}, adminHeaders())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		wallets.AssertNotCalled(t, "ResetMonthlyAll")
		wallets.AssertNotCalled(t, "ResetWeeklyAll")
	})
}

func TestHandleExport(t *testing.T) {
	export := new(mockExport)
	srv := newTestServer(new(mockBookings), new(mockWallets), export)

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	export.On("ListReservationsInWindow", mock.Anything, mock.Anything, mock.Anything).
		Return([]model.Reservation{{
			ID:         1,
			Reference:  "ref-1",
			MemberID:   7,
			StartTime:  start,
			EndTime:    start.Add(time.Hour),
			PointsCost: 2,
			Status:     model.StatusConfirmed,
		}}, nil)
	export.On("ListMembers", mock.Anything).Return([]model.Member{{ID: 7, Name: "Ann"}}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/admin/export?from=2026-03-01&to=2026-03-31", nil, adminHeaders())

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	workbook, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer workbook.Close()
	assert.Contains(t, workbook.GetSheetList(), "Reservations")
}

func TestRateLimit(t *testing.T) {
	logger := zerolog.Nop()
	bookings := new(mockBookings)
	srv := NewHTTPServer(Config{AdminKey: testAdminKey, RateLimit: 1, RateBurst: 1},
		bookings, new(mockWallets), new(mockExport), &logger)

	member := &model.Member{ID: 7, Name: "Ann"}
	bookings.On("GetWallet", mock.Anything, int64(7)).Return(member, nil)

	first := doJSON(t, srv.Handler(), http.MethodGet, "/api/wallet?member_id=7", nil, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, srv.Handler(), http.MethodGet, "/api/wallet?member_id=7", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
