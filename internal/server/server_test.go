package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/metrics"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/testutil"
)

type testServer struct {
	*Server
	gw *gateway.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := testutil.NewGateway(t)
	gw.Metrics = metrics.New()

	cfg := &config.Config{
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			SessionTTL:     time.Hour,
			AllowedOrigins: []string{"*"},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	s := NewServer(cfg, gw, nil, zap.NewNop())
	s.SetupRoutes()
	return &testServer{Server: s, gw: gw}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type signedIn struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (ts *testServer) signUp(t *testing.T, name string) signedIn {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email":     "user-" + uuid.NewString()[:8] + "@example.com",
		"password":  "password123",
		"full_name": name,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	out := decode[signedIn](t, w)
	require.NotEmpty(t, out.AccessToken)
	return out
}

func (ts *testServer) onboarded(t *testing.T, name string, role model.Role) signedIn {
	t.Helper()
	u := ts.signUp(t, name)
	w := ts.do(t, http.MethodPost, "/v1/me/onboarding", u.AccessToken, map[string]string{"role": string(role)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return u
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[LivenessResponse](t, w).Status)

	w = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode[ReadinessResponse](t, w).Status)
}

func TestReadinessDatabaseDown(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}),
		&gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	gw := gateway.New(db, gateway.Options{Logger: zap.NewNop()})
	s := NewServer(&config.Config{}, gw, nil, zap.NewNop())
	s.SetupRoutes()

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[ReadinessResponse](t, w)
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["database"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", string(decode[ErrorResponse](t, w).ErrorCode))

	w = ts.do(t, http.MethodPut, "/v1/me", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "UNAUTHORIZED", string(body.ErrorCode))
	assert.NotEmpty(t, body.RequestID)

	email := "ada-" + uuid.NewString()[:8] + "@example.com"
	w = ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email": email, "password": "password123", "full_name": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, ts.Sessions().Len())

	w = ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email": email, "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/auth/signin", "", map[string]string{
		"email": email, "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", string(decode[ErrorResponse](t, w).ErrorCode))

	w = ts.do(t, http.MethodPost, "/v1/auth/signin", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[signedIn](t, w).AccessToken

	w = ts.do(t, http.MethodGet, "/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[MeResponse](t, w)
	require.NotNil(t, me.User)
	assert.Equal(t, email, me.User.Email)
	assert.Equal(t, guard.PathOnboarding, me.Dashboard)

	w = ts.do(t, http.MethodPost, "/v1/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRevokedTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	u := ts.onboarded(t, "Lara", model.RoleLandlord)

	w := ts.do(t, http.MethodGet, "/v1/me", u.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, ts.gw.DB.Model(&model.AuthSession{}).
		Where("user_id = ?", u.User.ID).
		Update("revoked_at", time.Now()).Error)

	w = ts.do(t, http.MethodGet, "/v1/me", u.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/properties", u.AccessToken, map[string]interface{}{
		"title": "Loft", "price": 1200, "address": "1 Main St",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, ts.Sessions().Len())
}

func TestSignUpValidation(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"email": "short@example.com", "password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signin", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthUnknownProvider(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/auth/oauth/myspace", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeOnboardingAndUpdate(t *testing.T) {
	ts := newTestServer(t)
	u := ts.signUp(t, "Lara")

	w := ts.do(t, http.MethodPost, "/v1/me/onboarding", u.AccessToken, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/me/onboarding", u.AccessToken, map[string]string{
		"role":          "landlord",
		"landlord_type": "individual",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode[MeResponse](t, w)
	require.NotNil(t, me.Profile)
	assert.True(t, me.Profile.OnboardingCompleted)
	assert.Equal(t, guard.PathLandlordDashboard, me.Dashboard)

	w = ts.do(t, http.MethodPatch, "/v1/me", u.AccessToken, map[string]string{"bio": "Owner of two flats"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Owner of two flats", decode[MeResponse](t, w).Profile.Bio)
}

func TestNavigate(t *testing.T) {
	ts := newTestServer(t)

	nav := func(token, path string) guard.Decision {
		t.Helper()
		w := ts.do(t, http.MethodPost, "/v1/navigate", token, map[string]string{"path": path})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[guard.Decision](t, w)
	}

	assert.Equal(t, guard.Decision{Redirect: guard.PathLogin}, nav("", guard.PathLandlordDashboard))
	assert.Equal(t, guard.Decision{Allow: true}, nav("", guard.PathLogin))
	assert.Equal(t, guard.Decision{Redirect: guard.PathLogin}, nav("not-a-token", guard.PathTenantDashboard))

	u := ts.signUp(t, "Tomi")
	assert.Equal(t, guard.Decision{Redirect: guard.PathOnboarding}, nav(u.AccessToken, guard.PathTenantDashboard))
	assert.Equal(t, guard.Decision{Allow: true}, nav(u.AccessToken, guard.PathOnboarding))

	w := ts.do(t, http.MethodPost, "/v1/me/onboarding", u.AccessToken, map[string]string{"role": "tenant"})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, guard.Decision{Allow: true}, nav(u.AccessToken, guard.PathTenantDashboard))
	assert.Equal(t, guard.Decision{Redirect: guard.PathTenantDashboard}, nav(u.AccessToken, guard.PathLandlordDashboard))
	assert.Equal(t, guard.Decision{Redirect: guard.PathTenantDashboard}, nav(u.AccessToken, guard.PathLogin))

	w = ts.do(t, http.MethodPost, "/v1/navigate", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutesListing(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/routes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	routes := decode[[]guard.Route](t, w)
	assert.Equal(t, len(guard.DefaultRoutes().All()), len(routes))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodGet, "/health", "", nil)
	w := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tenantly_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/properties", nil)
	req.Header.Set("Origin", "http://localhost:8100")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:8100", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
