package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/store"
)

type applyRequest struct {
	Message string `json:"message"`
}

type reviewRequest struct {
	Status model.ApplicationStatus `json:"status"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in applyRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	app, err := s.applications.Submit(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"], in.Message)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// handleApplications lists applications on the caller's properties.
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	writeJSON(w, http.StatusOK, s.applications.ListForLandlord(r.Context(), sess.Auth.UserID()))
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	app := s.applications.Get(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"])
	if app == nil {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in reviewRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	app, err := s.applications.Review(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"], in.Status)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
