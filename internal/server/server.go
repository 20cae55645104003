// Package server exposes tenantly over HTTP. Every signed-in access token is
// backed by a store.Session held in a Sessions registry.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/metrics"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server

	gw            *gateway.Client
	deps          store.Deps
	sessions      *Sessions
	guard         *guard.Guard
	conversations *repository.ConversationRepository
	tenancies     *repository.TenancyRepository
	applications  *repository.ApplicationRepository

	errs    *errorHandler
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     *config.Config
}

// NewServer wires the stores and repositories over gw. triager may be nil.
func NewServer(cfg *config.Config, gw *gateway.Client, triager store.Triager, logger *zap.Logger) *Server {
	deps := store.NewDeps(gw, triager, logger)
	sessions := NewSessions(deps, cfg.Server.SessionTTL, gw.Metrics, logger)

	s := &Server{
		router:        mux.NewRouter(),
		gw:            gw,
		deps:          deps,
		sessions:      sessions,
		guard:         guard.New(guard.DefaultRoutes(), sessions, gw.Metrics, logger),
		conversations: repository.NewConversationRepository(gw, logger),
		tenancies:     repository.NewTenancyRepository(gw, logger),
		applications:  repository.NewApplicationRepository(gw, logger),
		errs:          &errorHandler{logger: logger},
		metrics:       gw.Metrics,
		logger:        logger,
		cfg:           cfg,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	routed := []func(http.Handler) http.Handler{
		Logging(s.logger, s.metrics),
		Timeout(s.cfg.Server.RequestTimeout),
	}
	if s.cfg.RateLimiter.Enabled {
		rl := NewRateLimiter(s.cfg.RateLimiter.RequestsPerSecond, s.cfg.RateLimiter.BurstSize, s.logger)
		routed = append(routed, rl.Limit)
	}
	s.router.Use(Chain(routed...))

	s.router.HandleFunc("/health", s.handleLiveness).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/storage/{bucket}/{path:.+}", s.handleDownload).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	v1.HandleFunc("/auth/signin", s.handleSignIn).Methods(http.MethodPost)
	v1.HandleFunc("/auth/signout", s.authed(s.handleSignOut)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/oauth/{provider}", s.handleOAuth).Methods(http.MethodGet)

	v1.HandleFunc("/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	v1.HandleFunc("/me", s.authed(s.handleUpdateMe)).Methods(http.MethodPatch)
	v1.HandleFunc("/me/onboarding", s.authed(s.handleOnboarding)).Methods(http.MethodPost)
	v1.HandleFunc("/me/avatar", s.authed(s.handleAvatar)).Methods(http.MethodPost)

	v1.HandleFunc("/navigate", s.handleNavigate).Methods(http.MethodPost)
	v1.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)

	v1.HandleFunc("/profiles/search", s.authed(s.handleSearchProfiles)).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{id}", s.authed(s.handleGetProfile)).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{id}/completeness", s.authed(s.handleCompleteness)).Methods(http.MethodGet)
	v1.HandleFunc("/landlords", s.authed(s.handleLandlords)).Methods(http.MethodGet)
	v1.HandleFunc("/landlords/{id}/stats", s.authed(s.handleLandlordStats)).Methods(http.MethodGet)
	v1.HandleFunc("/landlords/{id}/properties", s.authed(s.handleLandlordProperties)).Methods(http.MethodGet)

	v1.HandleFunc("/properties", s.authed(s.handleListProperties)).Methods(http.MethodGet)
	v1.HandleFunc("/properties", s.authed(s.handleCreateProperty)).Methods(http.MethodPost)
	v1.HandleFunc("/properties/mine", s.authed(s.handleMyProperties)).Methods(http.MethodGet)
	v1.HandleFunc("/properties/{id}", s.handleGetProperty).Methods(http.MethodGet)
	v1.HandleFunc("/properties/{id}", s.authed(s.handleUpdateProperty)).Methods(http.MethodPatch)
	v1.HandleFunc("/properties/{id}", s.authed(s.handleDeleteProperty)).Methods(http.MethodDelete)
	v1.HandleFunc("/properties/{id}/applications", s.authed(s.handleApply)).Methods(http.MethodPost)

	v1.HandleFunc("/conversations", s.authed(s.handleConversations)).Methods(http.MethodGet)
	v1.HandleFunc("/conversations", s.authed(s.handleStartConversation)).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/messages", s.authed(s.handleMessages)).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}/messages", s.authed(s.handleSendMessage)).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/read", s.authed(s.handleMarkRead)).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/stream", s.authed(s.handleStream)).Methods(http.MethodGet)
	v1.HandleFunc("/messages/unread", s.authed(s.handleUnread)).Methods(http.MethodGet)

	v1.HandleFunc("/tenancies", s.authed(s.handleTenancies)).Methods(http.MethodGet)
	v1.HandleFunc("/tenancies", s.authed(s.handleCreateTenancy)).Methods(http.MethodPost)
	v1.HandleFunc("/tenancies/ending-soon", s.authed(s.handleEndingSoon)).Methods(http.MethodGet)
	v1.HandleFunc("/tenancies/{id}", s.authed(s.handleUpdateTenancy)).Methods(http.MethodPatch)
	v1.HandleFunc("/tenancies/{id}/end", s.authed(s.handleEndTenancy)).Methods(http.MethodPost)

	v1.HandleFunc("/maintenance", s.authed(s.handleMaintenance)).Methods(http.MethodGet)
	v1.HandleFunc("/maintenance", s.authed(s.handleCreateMaintenance)).Methods(http.MethodPost)
	v1.HandleFunc("/maintenance/{id}/status", s.authed(s.handleMaintenanceStatus)).Methods(http.MethodPatch)
	v1.HandleFunc("/maintenance/{id}/assign", s.authed(s.handleAssignWorker)).Methods(http.MethodPost)
	v1.HandleFunc("/maintenance/{id}/viewed", s.authed(s.handleMarkViewed)).Methods(http.MethodPost)

	v1.HandleFunc("/applications", s.authed(s.handleApplications)).Methods(http.MethodGet)
	v1.HandleFunc("/applications/{id}", s.authed(s.handleGetApplication)).Methods(http.MethodGet)
	v1.HandleFunc("/applications/{id}/review", s.authed(s.handleReview)).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errs.WriteErrorResponse(w, http.StatusNotFound, apperr.ErrorCodeNotFound, "endpoint not found", requestID(r))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errs.WriteErrorResponse(w, http.StatusMethodNotAllowed, apperr.ErrorCodeInvalidRequest, "method not allowed", requestID(r))
	})

	// CORS runs ahead of routing so preflight requests never reach the
	// method matcher.
	s.handler = Chain(
		Recovery(s.logger),
		RequestID,
		CORS(s.cfg.Server.AllowedOrigins),
	)(s.router)
	s.httpServer.Handler = s.handler
}

// authed resolves the caller's session before calling h.
func (s *Server) authed(h func(http.ResponseWriter, *http.Request, *store.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.Context(), bearerToken(r))
		if err != nil {
			s.errs.HandleError(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

// bearerToken reads the access token from the Authorization header. Browsers
// cannot set headers on websocket requests, so the access_token query
// parameter is accepted as well.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("access_token")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Sessions() *Sessions {
	return s.sessions
}

func (s *Server) Guard() *guard.Guard {
	return s.guard
}
