package store

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
)

const AvatarBucket = "avatars"

// OnboardingInput is what the onboarding form collects.
type OnboardingInput struct {
	Role              model.Role         `json:"role"`
	LandlordType      model.LandlordType `json:"landlord_type,omitempty"`
	CompanyName       *string            `json:"company_name,omitempty"`
	Bio               *string            `json:"bio,omitempty"`
	PhoneNumber       *string            `json:"phone_number,omitempty"`
	Occupation        *string            `json:"occupation,omitempty"`
	Employer          *string            `json:"employer,omitempty"`
	YearsOfExperience *int               `json:"years_of_experience,omitempty"`
}

// AuthStore tracks the signed-in user and their profile.
type AuthStore struct {
	gw       *gateway.Client
	profiles *repository.ProfileRepository
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	token   string
	user    *model.User
	profile *model.Profile
	loading bool
	err     error
}

func NewAuthStore(gw *gateway.Client, profiles *repository.ProfileRepository, logger *zap.Logger) *AuthStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthStore{gw: gw, profiles: profiles, logger: logger, now: time.Now}
}

func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *AuthStore) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *AuthStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *AuthStore) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *AuthStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *AuthStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// State classifies the session for the navigation guard.
func (s *AuthStore) State() guard.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return guard.StateOf(s.user, s.profile)
}

func (s *AuthStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *AuthStore) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

func (s *AuthStore) clear() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.profile = nil
	s.mu.Unlock()
}

// Restore adopts token and loads the user behind it.
func (s *AuthStore) Restore(ctx context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.LoadUser(ctx)
}

// LoadUser resolves the current token. An invalid or expired token signs the
// store out.
func (s *AuthStore) LoadUser(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	session, err := s.gw.Auth.GetSession(ctx, s.Token())
	if err != nil {
		return s.fail(err)
	}
	if session == nil {
		s.clear()
		return nil
	}

	s.mu.Lock()
	s.user = session.User
	s.err = nil
	s.mu.Unlock()

	s.FetchProfile(ctx)
	return nil
}

// LoadState loads the user and returns the resulting guard state.
func (s *AuthStore) LoadState(ctx context.Context) (guard.State, error) {
	if err := s.LoadUser(ctx); err != nil {
		return nil, err
	}
	return s.State(), nil
}

// FetchProfile reloads the signed-in user's profile. A missing profile leaves
// the previous one in place.
func (s *AuthStore) FetchProfile(ctx context.Context) *model.Profile {
	id := s.UserID()
	if id == "" {
		return nil
	}
	p := s.profiles.GetProfile(ctx, id)
	if p != nil {
		s.mu.Lock()
		s.profile = p
		s.mu.Unlock()
	}
	return p
}

func (s *AuthStore) adopt(ctx context.Context, session *gateway.Session) {
	s.mu.Lock()
	s.token = session.AccessToken
	s.user = session.User
	s.profile = nil
	s.err = nil
	s.mu.Unlock()
	s.FetchProfile(ctx)
}

func (s *AuthStore) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	session, err := s.gw.Auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, s.fail(err)
	}
	s.adopt(ctx, session)
	return session, nil
}

func (s *AuthStore) SignUp(ctx context.Context, email, password, fullName string) (*gateway.Session, error) {
	session, err := s.gw.Auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		return nil, s.fail(err)
	}
	s.adopt(ctx, session)
	return session, nil
}

// SignInWithOAuth returns the provider URL the browser must visit. Sign-in
// finishes on the onboarding page unless redirectTo says otherwise.
func (s *AuthStore) SignInWithOAuth(provider, redirectTo string) (*gateway.OAuthRedirect, error) {
	r, err := s.gw.Auth.SignInWithOAuth(provider, redirectTo)
	if err != nil {
		return nil, s.fail(err)
	}
	return r, nil
}

func (s *AuthStore) UpdateProfile(ctx context.Context, patch repository.ProfilePatch) (*model.Profile, error) {
	id := s.UserID()
	if id == "" {
		return nil, s.fail(apperr.ErrNotAuthenticated)
	}
	p, err := s.profiles.UpdateProfile(ctx, id, patch)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return p, nil
}

// CompleteOnboarding writes the onboarding answers and marks the profile as
// onboarded, creating the profile when it does not exist yet.
func (s *AuthStore) CompleteOnboarding(ctx context.Context, in OnboardingInput) (*model.Profile, error) {
	id := s.UserID()
	if id == "" {
		return nil, s.fail(apperr.ErrNotAuthenticated)
	}
	if !in.Role.Valid() {
		return nil, s.fail(apperr.Invalid("role", "must be tenant or landlord"))
	}

	done := true
	patch := repository.ProfilePatch{
		Role:                &in.Role,
		CompanyName:         in.CompanyName,
		Bio:                 in.Bio,
		PhoneNumber:         in.PhoneNumber,
		Occupation:          in.Occupation,
		Employer:            in.Employer,
		YearsOfExperience:   in.YearsOfExperience,
		ProfileCompleted:    &done,
		OnboardingCompleted: &done,
	}
	if in.LandlordType != "" {
		patch.LandlordType = &in.LandlordType
	}
	if user := s.CurrentUser(); user != nil && s.Profile() == nil {
		patch.FullName = &user.FullName
	}

	p, err := s.profiles.UpsertProfile(ctx, id, patch)
	if err != nil {
		return nil, s.fail(err)
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return p, nil
}

// UploadAvatar stores the image under the user's folder in the avatars
// bucket and points the profile at its public URL.
func (s *AuthStore) UploadAvatar(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	id := s.UserID()
	if id == "" {
		return "", s.fail(apperr.ErrNotAuthenticated)
	}

	ext := strings.ToLower(path.Ext(filename))
	objectPath := fmt.Sprintf("%s/avatar-%d%s", id, s.now().UnixMilli(), ext)

	err := s.gw.Storage.Upload(ctx, AvatarBucket, objectPath, r, gateway.UploadOptions{
		Upsert:      true,
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("avatar upload failed", zap.String("user_id", id), zap.Error(err))
		return "", s.fail(apperr.Remote("storage.upload", err))
	}

	url := s.gw.Storage.PublicURL(AvatarBucket, objectPath)
	if _, err := s.UpdateProfile(ctx, repository.ProfilePatch{AvatarURL: &url}); err != nil {
		return "", err
	}
	return url, nil
}

// SignOut revokes the session and forgets the user.
func (s *AuthStore) SignOut(ctx context.Context) error {
	err := s.gw.Auth.SignOut(ctx, s.Token())
	s.clear()
	if err != nil {
		s.logger.Warn("sign out failed", zap.Error(err))
		return s.fail(err)
	}
	return nil
}
