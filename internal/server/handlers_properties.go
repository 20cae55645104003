package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if err := sess.Properties.FetchAllProperties(r.Context()); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Properties.Properties())
}

func (s *Server) handleMyProperties(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if err := sess.Properties.FetchMyProperties(r.Context()); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Properties.Properties())
}

// handleGetProperty backs the public property page and needs no session.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	p := s.deps.Properties.GetProperty(r.Context(), mux.Vars(r)["id"])
	if p == nil {
		s.errs.HandleError(w, r, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in repository.PropertyInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	p, err := sess.Properties.AddProperty(r.Context(), in)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var patch repository.PropertyPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	p, err := sess.Properties.UpdateProperty(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	if err := sess.Properties.DeleteProperty(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
