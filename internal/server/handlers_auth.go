package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

const maxAvatarBytes = 5 << 20

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SessionResponse is returned by sign-up and sign-in.
type SessionResponse struct {
	*gateway.Session
	Profile *model.Profile `json:"profile"`
}

// MeResponse describes the caller and where the guard would send them.
type MeResponse struct {
	User      *model.User    `json:"user"`
	Profile   *model.Profile `json:"profile"`
	Dashboard string         `json:"dashboard"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	sess := s.sessions.New()
	session, err := sess.Auth.SignUp(r.Context(), in.Email, in.Password, in.FullName)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.sessions.Put(session.AccessToken, session.ExpiresAt, sess)
	writeJSON(w, http.StatusCreated, SessionResponse{Session: session, Profile: sess.Auth.Profile()})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	sess := s.sessions.New()
	session, err := sess.Auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.sessions.Put(session.AccessToken, session.ExpiresAt, sess)
	writeJSON(w, http.StatusOK, SessionResponse{Session: session, Profile: sess.Auth.Profile()})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	token := sess.Auth.Token()
	err := sess.Auth.SignOut(r.Context())
	s.sessions.Drop(token)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	redirect, err := s.sessions.New().Auth.SignInWithOAuth(provider, r.URL.Query().Get("redirect_to"))
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redirect)
}

func (s *Server) me(sess *store.Session) MeResponse {
	resp := MeResponse{User: sess.Auth.CurrentUser(), Profile: sess.Auth.Profile()}
	if c, ok := sess.Auth.State().(guard.Complete); ok {
		resp.Dashboard = guard.DashboardFor(c.Role)
	} else {
		resp.Dashboard = guard.PathOnboarding
	}
	return resp
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	sess.Auth.FetchProfile(r.Context())
	writeJSON(w, http.StatusOK, s.me(sess))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var patch repository.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	if _, err := sess.Auth.UpdateProfile(r.Context(), patch); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.me(sess))
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in store.OnboardingInput
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	if _, err := sess.Auth.CompleteOnboarding(r.Context(), in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.me(sess))
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errs.HandleError(w, r, apperr.Invalid("file", "must be at most 5MB"))
			return
		}
		s.errs.HandleError(w, r, apperr.Invalid("file", "multipart field is required"))
		return
	}
	defer file.Close()

	url, err := sess.Auth.UploadAvatar(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

type navigateRequest struct {
	Path string `json:"path"`
}

// handleNavigate answers whether the caller may open a client route. Callers
// without a token are anonymous.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var in navigateRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	if in.Path == "" {
		s.errs.HandleError(w, r, apperr.Invalid("path", "is required"))
		return
	}
	writeJSON(w, http.StatusOK, s.guard.Resolve(r.Context(), bearerToken(r), in.Path))
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.guard.Routes().All())
}
