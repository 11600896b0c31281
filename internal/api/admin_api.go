package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"studiobook/internal/metrics"
	"studiobook/internal/model"
	"studiobook/internal/report"
)

// CreateMemberRequest is the request body for POST /api/admin/members.
type CreateMemberRequest struct {
	Name             string `json:"name"`
	MonthlyPointsMax int    `json:"monthly_points_max,omitempty"`
	WeekendSlotsMax  int    `json:"weekend_slots_max,omitempty"`
}

// SetCapRequest updates a cap; MemberID 0 applies the cap to all members.
type SetCapRequest struct {
	MemberID int64 `json:"member_id,omitempty"`
	NewMax   int   `json:"new_max"`
}

// ResetRequest triggers a manual bulk reset.
type ResetRequest struct {
	Kind string `json:"kind"` // "monthly" or "weekly"
}

// handleMembers creates or lists members.
// POST|GET /api/admin/members
func (s *HTTPServer) handleMembers(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_members")
	switch r.Method {
	case http.MethodGet:
		members, err := s.wallets.ListMembers(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if members == nil {
			members = []model.Member{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})

	case http.MethodPost:
		var req CreateMemberRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		member := &model.Member{
			Name:             req.Name,
			MonthlyPointsMax: req.MonthlyPointsMax,
			WeekendSlotsMax:  req.WeekendSlotsMax,
		}
		if err := s.wallets.CreateMember(r.Context(), member); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, member)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSetCap overrides the monthly point cap.
// POST /api/admin/caps/points
func (s *HTTPServer) handleSetCap(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_set_cap")
	s.capUpdate(w, r, s.wallets.SetCap, s.wallets.SetCapAll)
}

// handleSetPeakCap overrides the weekly peak quota cap.
// POST /api/admin/caps/peak
func (s *HTTPServer) handleSetPeakCap(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_set_peak_cap")
	s.capUpdate(w, r, s.wallets.SetPeakCap, s.wallets.SetPeakCapAll)
}

func (s *HTTPServer) capUpdate(
	w http.ResponseWriter,
	r *http.Request,
	one func(ctx context.Context, memberID int64, newMax int) error,
	all func(ctx context.Context, newMax int) (int, error),
) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req SetCapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewMax < 0 {
		writeError(w, http.StatusBadRequest, "new_max must not be negative")
		return
	}

	if req.MemberID == 0 {
		updated, err := all(r.Context(), req.NewMax)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"updated": updated, "new_max": req.NewMax})
		return
	}

	if err := one(r.Context(), req.MemberID, req.NewMax); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"member_id": req.MemberID, "new_max": req.NewMax})
}

// handleManualReset runs a bulk wallet reset outside the scheduler.
// POST /api/admin/reset
func (s *HTTPServer) handleManualReset(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_reset")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		count int
		err   error
	)
	switch req.Kind {
	case "monthly":
		count, err = s.wallets.ResetMonthlyAll(r.Context())
	case "weekly":
		count, err = s.wallets.ResetWeeklyAll(r.Context())
	default:
		writeError(w, http.StatusBadRequest, "kind must be monthly or weekly")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": req.Kind, "reset": count})
}

// handleExport streams an xlsx workbook with reservations and wallet balances.
// GET /api/admin/export?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("admin_export")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 1, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = t.AddDate(0, 0, 1)
	}

	reservations, err := s.export.ListReservationsInWindow(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	members, err := s.export.ListMembers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=studiobook_%s.xlsx", now.Format("2006-01-02")))
	if err := report.WriteWorkbook(w, reservations, members); err != nil {
		s.logger.Error().Err(err).Msg("export workbook write failed")
	}
}
