package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

type statusRequest struct {
	Status model.MaintenanceStatus `json:"status"`
}

type assignRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if err := sess.Maintenance.FetchRequests(r.Context()); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Maintenance.Requests())
}

func (s *Server) handleCreateMaintenance(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in repository.MaintenanceInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	req, err := sess.Maintenance.CreateRequest(r.Context(), in)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleMaintenanceStatus(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in statusRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	req, err := sess.Maintenance.UpdateStatus(r.Context(), mux.Vars(r)["id"], in.Status)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleAssignWorker(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in assignRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	req, err := s.deps.Maintenance.AssignWorker(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"], in.Name, in.Phone)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleMarkViewed(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if err := s.deps.Maintenance.MarkViewed(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"]); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
