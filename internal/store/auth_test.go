package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
	"github.com/beesaferoot/tenantly/internal/testutil"
)

func newSession(t *testing.T) (*gateway.Client, *Session) {
	t.Helper()
	gw := testutil.NewGateway(t)
	return gw, NewSession(NewDeps(gw, nil, zap.NewNop()))
}

func email() string {
	return "user-" + uuid.NewString()[:8] + "@example.com"
}

func TestAuthStore_SignUpAndOnboarding(t *testing.T) {
	_, sess := newSession(t)
	ctx := context.Background()
	auth := sess.Auth

	assert.Equal(t, guard.Anonymous{}, auth.State())

	session, err := auth.SignUp(ctx, email(), "password123", "Ada Tenant")
	require.NoError(t, err)
	assert.Equal(t, session.AccessToken, auth.Token())
	require.NotNil(t, auth.CurrentUser())
	require.NotNil(t, auth.Profile())
	assert.Equal(t, "Ada Tenant", auth.Profile().FullName)
	assert.IsType(t, guard.Incomplete{}, auth.State())

	company := "Ada Homes"
	p, err := auth.CompleteOnboarding(ctx, OnboardingInput{
		Role:         model.RoleLandlord,
		LandlordType: model.LandlordCompany,
		CompanyName:  &company,
	})
	require.NoError(t, err)
	assert.True(t, p.OnboardingCompleted)
	assert.True(t, p.ProfileCompleted)
	assert.Equal(t, "Ada Homes", p.CompanyName)
	assert.Equal(t, "Ada Tenant", p.FullName)
	assert.Equal(t, guard.Complete{Role: model.RoleLandlord}, auth.State())

	_, err = auth.CompleteOnboarding(ctx, OnboardingInput{Role: "admin"})
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, err, auth.Err())
}

func TestAuthStore_OnboardingWithoutProfile(t *testing.T) {
	gw, sess := newSession(t)
	ctx := context.Background()

	_, err := sess.Auth.SignUp(ctx, email(), "password123", "No Profile")
	require.NoError(t, err)
	require.NoError(t, gw.DB.Where("id = ?", sess.Auth.UserID()).Delete(&model.Profile{}).Error)

	fresh := NewSession(NewDeps(gw, nil, zap.NewNop()))
	require.NoError(t, fresh.Auth.Restore(ctx, sess.Auth.Token()))
	assert.Nil(t, fresh.Auth.Profile())
	assert.Equal(t, guard.Incomplete{}, fresh.Auth.State())

	p, err := fresh.Auth.CompleteOnboarding(ctx, OnboardingInput{Role: model.RoleTenant})
	require.NoError(t, err)
	assert.Equal(t, sess.Auth.UserID(), p.ID)
	assert.Equal(t, "No Profile", p.FullName)
	assert.Equal(t, guard.Complete{Role: model.RoleTenant}, fresh.Auth.State())
}

func TestAuthStore_SignInRestoreAndSignOut(t *testing.T) {
	gw, sess := newSession(t)
	ctx := context.Background()
	addr := email()

	_, err := gw.Auth.SignUp(ctx, addr, "password123", "Bo")
	require.NoError(t, err)

	_, err = sess.Auth.SignIn(ctx, addr, "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.ErrorIs(t, sess.Auth.Err(), apperr.ErrInvalidCredentials)
	assert.Nil(t, sess.Auth.CurrentUser())

	session, err := sess.Auth.SignIn(ctx, addr, "password123")
	require.NoError(t, err)
	assert.NoError(t, sess.Auth.Err())

	other := NewSession(NewDeps(gw, nil, zap.NewNop()))
	state, err := other.Auth.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, guard.Anonymous{}, state)

	require.NoError(t, other.Auth.Restore(ctx, session.AccessToken))
	assert.Equal(t, sess.Auth.UserID(), other.Auth.UserID())
	assert.False(t, other.Auth.Loading())

	require.NoError(t, sess.Auth.SignOut(ctx))
	assert.Nil(t, sess.Auth.CurrentUser())
	assert.Nil(t, sess.Auth.Profile())
	assert.Empty(t, sess.Auth.Token())

	require.NoError(t, other.Auth.LoadUser(ctx))
	assert.Nil(t, other.Auth.CurrentUser())
	assert.Equal(t, guard.Anonymous{}, other.Auth.State())
}

func TestAuthStore_RequiresUser(t *testing.T) {
	_, sess := newSession(t)
	ctx := context.Background()

	_, err := sess.Auth.UpdateProfile(ctx, repository.ProfilePatch{})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = sess.Auth.CompleteOnboarding(ctx, OnboardingInput{Role: model.RoleTenant})
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = sess.Auth.UploadAvatar(ctx, "me.png", "image/png", bytes.NewReader([]byte("png")))
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	assert.Nil(t, sess.Auth.FetchProfile(ctx))
}

func TestAuthStore_SignInWithOAuth(t *testing.T) {
	_, sess := newSession(t)

	_, err := sess.Auth.SignInWithOAuth("myspace", "")
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestAuthStore_UploadAvatar(t *testing.T) {
	gw, sess := newSession(t)
	ctx := context.Background()
	sess.Auth.now = func() time.Time { return time.UnixMilli(1700000000000) }

	_, err := sess.Auth.SignUp(ctx, email(), "password123", "Ava")
	require.NoError(t, err)
	id := sess.Auth.UserID()

	url, err := sess.Auth.UploadAvatar(ctx, "Me.PNG", "image/png", bytes.NewReader([]byte("image-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/storage/avatars/"+id+"/avatar-1700000000000.png", url)
	assert.Equal(t, url, sess.Auth.Profile().AvatarURL)

	var buf bytes.Buffer
	require.NoError(t, gw.Storage.Download(ctx, AvatarBucket, id+"/avatar-1700000000000.png", &buf))
	assert.Equal(t, "image-bytes", buf.String())

	_, err = sess.Auth.UploadAvatar(ctx, "Me.png", "image/png", bytes.NewReader([]byte("again")))
	require.NoError(t, err)
}
