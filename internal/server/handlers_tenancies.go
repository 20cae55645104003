package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

// tenancyRequest carries dates as YYYY-MM-DD strings.
type tenancyRequest struct {
	PropertyID    string               `json:"property_id"`
	TenantID      string               `json:"tenant_id"`
	StartDate     *string              `json:"start_date"`
	EndDate       *string              `json:"end_date"`
	MonthlyRent   *float64             `json:"monthly_rent"`
	DepositAmount *float64             `json:"deposit_amount"`
	PaymentDueDay *int                 `json:"payment_due_day"`
	Notes         *string              `json:"notes"`
	Status        *model.TenancyStatus `json:"status"`
}

func parseDate(field string, s *string) (*datatypes.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, *s); err != nil {
			return nil, apperr.Invalid(field, "must be a YYYY-MM-DD date")
		}
	}
	d := datatypes.Date(t)
	return &d, nil
}

func (in tenancyRequest) patch() (repository.TenancyPatch, error) {
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return repository.TenancyPatch{}, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return repository.TenancyPatch{}, err
	}
	return repository.TenancyPatch{
		StartDate:     start,
		EndDate:       end,
		MonthlyRent:   in.MonthlyRent,
		DepositAmount: in.DepositAmount,
		PaymentDueDay: in.PaymentDueDay,
		Notes:         in.Notes,
		Status:        in.Status,
	}, nil
}

func (in tenancyRequest) tenancy() (*model.Tenancy, error) {
	p, err := in.patch()
	if err != nil {
		return nil, err
	}
	if p.StartDate == nil {
		return nil, apperr.Invalid("start_date", "is required")
	}
	t := &model.Tenancy{
		PropertyID:    in.PropertyID,
		TenantID:      in.TenantID,
		StartDate:     *p.StartDate,
		EndDate:       p.EndDate,
		MonthlyRent:   p.MonthlyRent,
		DepositAmount: p.DepositAmount,
		PaymentDueDay: p.PaymentDueDay,
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	return t, nil
}

// handleTenancies lists tenancies on the caller's properties; ?active=true
// narrows the list to active ones.
func (s *Server) handleTenancies(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	id := sess.Auth.UserID()
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		writeJSON(w, http.StatusOK, s.tenancies.GetActiveTenancies(r.Context(), id))
		return
	}
	writeJSON(w, http.StatusOK, s.tenancies.GetAllTenancies(r.Context(), id))
}

func (s *Server) handleEndingSoon(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	days := repository.DefaultLeaseWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errs.HandleError(w, r, apperr.Invalid("days", "must be a positive integer"))
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, s.tenancies.GetLeaseEndingSoon(r.Context(), sess.Auth.UserID(), days))
}

func (s *Server) handleCreateTenancy(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in tenancyRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	t, err := in.tenancy()
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	if prop := s.deps.Properties.GetProperty(r.Context(), t.PropertyID); prop == nil || prop.LandlordID != sess.Auth.UserID() {
		s.errs.HandleError(w, r, apperr.Remote("tenancies.insert", apperr.ErrNotFound))
		return
	}
	created, err := s.tenancies.CreateTenancy(r.Context(), t)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTenancy(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	id := mux.Vars(r)["id"]
	if !s.ownsTenancy(r.Context(), sess.Auth.UserID(), id) {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	var in tenancyRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	patch, err := in.patch()
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	t, err := s.tenancies.UpdateTenancy(r.Context(), id, patch)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleEndTenancy(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	id := mux.Vars(r)["id"]
	if !s.ownsTenancy(r.Context(), sess.Auth.UserID(), id) {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	if err := s.tenancies.EndTenancy(r.Context(), id); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownsTenancy(ctx context.Context, landlordID, id string) bool {
	for _, t := range s.tenancies.GetAllTenancies(ctx, landlordID) {
		if t.ID == id {
			return true
		}
	}
	return false
}
