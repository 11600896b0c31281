package api

import (
	"net/http"
	"strconv"
	"time"

	"studiobook/internal/metrics"
	"studiobook/internal/model"
)

// BookRequest is the request body for POST /api/bookings.
type BookRequest struct {
	MemberID  int64     `json:"member_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// CancelRequest is the request body for POST /api/bookings/cancel.
type CancelRequest struct {
	ReservationID int64 `json:"reservation_id"`
}

// handleBook creates a reservation.
// POST /api/bookings
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req BookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MemberID <= 0 {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	res, err := s.bookings.Book(r.Context(), req.MemberID, req.StartTime, req.EndTime)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleCancel cancels a reservation with the tiered refund.
// POST /api/bookings/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ReservationID <= 0 {
		writeError(w, http.StatusBadRequest, "reservation_id is required")
		return
	}

	res, err := s.bookings.Cancel(r.Context(), req.ReservationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleWallet returns the member's wallet snapshot.
// GET /api/wallet?member_id=N
func (s *HTTPServer) handleWallet(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("wallet")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	memberID, ok := queryID(w, r, "member_id")
	if !ok {
		return
	}

	member, err := s.bookings.GetWallet(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// handleLedger returns the member's wallet journal.
// GET /api/wallet/ledger?member_id=N&limit=M
func (s *HTTPServer) handleLedger(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("ledger")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	memberID, ok := queryID(w, r, "member_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.wallets.GetLedger(r.Context(), memberID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// handleMemberReservations returns the member's booking history.
// GET /api/reservations?member_id=N
func (s *HTTPServer) handleMemberReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	memberID, ok := queryID(w, r, "member_id")
	if !ok {
		return
	}

	reservations, err := s.bookings.MemberReservations(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reservations": reservations})
}

// handleAvailability returns the priced cell grid of a day.
// GET /api/availability?date=YYYY-MM-DD
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	cells, err := s.bookings.DayAvailability(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": dateStr, "cells": cells})
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, name+" is required")
		return 0, false
	}
	return id, true
}
