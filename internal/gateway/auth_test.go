package gateway_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/testutil"
)

func TestAuth_SignUpCreatesTenantProfile(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()

	session, err := gw.Auth.SignUp(ctx, " Jane@Example.com ", "password123", "Jane Doe")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "jane@example.com", session.User.Email)

	var profile model.Profile
	require.NoError(t, gw.DB.First(&profile, "id = ?", session.User.ID).Error)
	assert.Equal(t, "Jane Doe", profile.FullName)
	assert.Equal(t, model.RoleTenant, profile.Role)
	assert.False(t, profile.OnboardingCompleted)

	_, err = gw.Auth.SignUp(ctx, "jane@example.com", "password123", "Jane Again")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAuth_SignUpValidation(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()

	var validation *apperr.ValidationError
	_, err := gw.Auth.SignUp(ctx, "not-an-email", "password123", "X")
	assert.ErrorAs(t, err, &validation)

	_, err = gw.Auth.SignUp(ctx, "x@example.com", "short", "X")
	assert.ErrorAs(t, err, &validation)
}

func TestAuth_SignInAndSession(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()

	_, err := gw.Auth.SignUp(ctx, "sam@example.com", "password123", "Sam")
	require.NoError(t, err)

	_, err = gw.Auth.SignInWithPassword(ctx, "sam@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = gw.Auth.SignInWithPassword(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	session, err := gw.Auth.SignInWithPassword(ctx, "SAM@example.com", "password123")
	require.NoError(t, err)

	got, err := gw.Auth.GetSession(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.User.ID, got.User.ID)

	user, err := gw.Auth.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.Email)
}

func TestAuth_GetSessionRejectsBadTokens(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()

	for _, token := range []string{"", "garbage", "a.b.c"} {
		s, err := gw.Auth.GetSession(ctx, token)
		assert.NoError(t, err)
		assert.Nil(t, s)
	}

	_, err := gw.Auth.GetUser(ctx, "garbage")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestAuth_SignOutRevokesSession(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()
	session := testutil.SignUp(t, gw, "Lee")

	require.NoError(t, gw.Auth.SignOut(ctx, session.AccessToken))

	got, err := gw.Auth.GetSession(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, gw.Auth.SignOut(ctx, session.AccessToken), "signing out twice is harmless")
}

func TestAuth_SessionExpiry(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()
	session := testutil.SignUp(t, gw, "Lee")

	expiresAt, err := gw.Auth.SessionExpiry(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.WithinDuration(t, session.ExpiresAt, expiresAt, time.Second)

	_, err = gw.Auth.SessionExpiry(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = gw.Auth.SessionExpiry(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	require.NoError(t, gw.Auth.SignOut(ctx, session.AccessToken))
	_, err = gw.Auth.SessionExpiry(ctx, session.AccessToken)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestAuth_ExpiredSession(t *testing.T) {
	gw := testutil.NewGateway(t)
	ctx := context.Background()

	auth := gateway.NewAuth(gw.DB, gateway.AuthOptions{Secret: "s", SessionTTL: time.Millisecond}, nil)
	_, err := auth.SignUp(ctx, "old@example.com", "password123", "Old")
	require.NoError(t, err)
	session, err := auth.SignInWithPassword(ctx, "old@example.com", "password123")
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	got, err := auth.GetSession(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAuth_SignInWithOAuth(t *testing.T) {
	configs, err := gateway.OAuthConfigs(map[string]config.OAuthProviderConfig{
		"google": {ClientID: "client-id", ClientSecret: "secret"},
	}, "http://localhost:8100/")
	require.NoError(t, err)

	gw := testutil.NewGateway(t)
	auth := gateway.NewAuth(gw.DB, gateway.AuthOptions{Secret: "s", OAuth: configs}, nil)

	redirect, err := auth.SignInWithOAuth("google", "")
	require.NoError(t, err)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "http://localhost:8100/onboarding", q.Get("redirect_uri"))
	assert.Equal(t, redirect.State, q.Get("state"))

	_, err = auth.SignInWithOAuth("myspace", "")
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = gateway.OAuthConfigs(map[string]config.OAuthProviderConfig{"myspace": {}}, "")
	assert.Error(t, err)
}

func TestAuth_OAuthRedirectOverride(t *testing.T) {
	gw := testutil.NewGateway(t)
	auth := gateway.NewAuth(gw.DB, gateway.AuthOptions{
		Secret: "s",
		OAuth: map[string]*oauth2.Config{
			"github": {ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://github.com/login/oauth/authorize"}},
		},
	}, nil)

	redirect, err := auth.SignInWithOAuth("github", "https://app.example.com/onboarding")
	require.NoError(t, err)
	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/onboarding", u.Query().Get("redirect_uri"))
}
