package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	q := r.URL.Query()
	role := model.Role(q.Get("role"))
	if role != "" && !role.Valid() {
		s.errs.HandleError(w, r, apperr.Invalid("role", "must be tenant or landlord"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Profiles.SearchProfiles(r.Context(), q.Get("q"), role))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	p := s.deps.Profiles.GetProfile(r.Context(), mux.Vars(r)["id"])
	if p == nil {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	n := s.deps.Profiles.GetProfileCompleteness(r.Context(), mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, map[string]int{"completeness": n})
}

func (s *Server) handleLandlords(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	q := r.URL.Query()
	f := repository.LandlordFilter{LandlordType: model.LandlordType(q.Get("type"))}
	if v := q.Get("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.errs.HandleError(w, r, apperr.Invalid("verified", "must be a boolean"))
			return
		}
		f.Verified = &b
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.errs.HandleError(w, r, apperr.Invalid("min_rating", "must be a number"))
			return
		}
		f.MinRating = rating
	}
	writeJSON(w, http.StatusOK, s.deps.Profiles.GetLandlords(r.Context(), f))
}

func (s *Server) handleLandlordStats(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	stats := s.deps.Profiles.GetLandlordStats(r.Context(), mux.Vars(r)["id"])
	if stats == nil {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLandlordProperties(w http.ResponseWriter, r *http.Request, _ *store.Session) {
	writeJSON(w, http.StatusOK, s.deps.Profiles.GetPropertiesByLandlord(r.Context(), mux.Vars(r)["id"]))
}
