// Package api is the HTTP surface of the booking engine: member-facing
// booking endpoints and an admin surface guarded by an API key. No UI
// concerns live here; handlers translate between JSON and the core
// services and map the error taxonomy to distinct responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"studiobook/internal/model"
	"studiobook/internal/slots"
)

// BookingService is the booking workflow surface the handlers need.
type BookingService interface {
	Book(ctx context.Context, memberID int64, start, end time.Time) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID int64) (*model.Reservation, error)
	GetWallet(ctx context.Context, memberID int64) (*model.Member, error)
	MemberReservations(ctx context.Context, memberID int64) ([]model.Reservation, error)
	DayAvailability(ctx context.Context, date time.Time) ([]slots.CellInfo, error)
}

// WalletService is the admin-facing wallet ledger surface.
type WalletService interface {
	CreateMember(ctx context.Context, m *model.Member) error
	ListMembers(ctx context.Context) ([]model.Member, error)
	GetLedger(ctx context.Context, memberID int64, limit int) ([]model.LedgerEntry, error)
	SetCap(ctx context.Context, memberID int64, newMax int) error
	SetPeakCap(ctx context.Context, memberID int64, newMax int) error
	SetCapAll(ctx context.Context, newMax int) (int, error)
	SetPeakCapAll(ctx context.Context, newMax int) (int, error)
	ResetMonthlyAll(ctx context.Context) (int, error)
	ResetWeeklyAll(ctx context.Context) (int, error)
}

// ExportStore lists rows for the admin Excel export.
type ExportStore interface {
	ListReservationsInWindow(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListMembers(ctx context.Context) ([]model.Member, error)
}

// Config holds HTTP server settings.
type Config struct {
	Port      int
	AdminKey  string
	RateLimit float64 // requests per second; 0 disables limiting
	RateBurst int
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	bookings BookingService
	wallets  WalletService
	export   ExportStore
	limiter  *rate.Limiter
	adminKey string
	logger   *zerolog.Logger
	server   *http.Server
}

// NewHTTPServer wires the routes.
func NewHTTPServer(cfg Config, bookings BookingService, wallets WalletService, export ExportStore, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		bookings: bookings,
		wallets:  wallets,
		export:   export,
		adminKey: cfg.AdminKey,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/bookings", s.limited(s.handleBook))
	mux.HandleFunc("/api/bookings/cancel", s.limited(s.handleCancel))
	mux.HandleFunc("/api/wallet", s.limited(s.handleWallet))
	mux.HandleFunc("/api/wallet/ledger", s.limited(s.handleLedger))
	mux.HandleFunc("/api/reservations", s.limited(s.handleMemberReservations))
	mux.HandleFunc("/api/availability", s.limited(s.handleAvailability))

	mux.HandleFunc("/api/admin/members", s.admin(s.handleMembers))
	mux.HandleFunc("/api/admin/caps/points", s.admin(s.handleSetCap))
	mux.HandleFunc("/api/admin/caps/peak", s.admin(s.handleSetPeakCap))
	mux.HandleFunc("/api/admin/reset", s.admin(s.handleManualReset))
	mux.HandleFunc("/api/admin/export", s.admin(s.handleExport))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("api server started")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// limited applies the global rate limit.
func (s *HTTPServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// admin requires the x-api-key header on top of the rate limit.
func (s *HTTPServer) admin(next http.HandlerFunc) http.HandlerFunc {
	return s.limited(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" || r.Header.Get("x-api-key") != s.adminKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the engine's error taxonomy to HTTP statuses.
// Every kind keeps its own message so callers can tell a full wallet
// apart from a scheduling conflict.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrMisalignedSlot),
		errors.Is(err, model.ErrPastSlot),
		errors.Is(err, model.ErrTooFarAhead):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrSlotConflict),
		errors.Is(err, model.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInsufficientPoints),
		errors.Is(err, model.ErrPeakQuotaExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrStoreContention):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
