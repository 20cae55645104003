package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/config"
	"github.com/beesaferoot/tenantly/internal/model"
)

const minPasswordLength = 6

// Session is an issued access token and the user it belongs to.
type Session struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

// OAuthRedirect is where the caller must send the browser to sign in with a
// provider.
type OAuthRedirect struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
	State    string `json:"state"`
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthOptions struct {
	Secret     string
	SessionTTL time.Duration
	OAuth      map[string]*oauth2.Config
}

// Auth issues and verifies sessions. Tokens are HS256 JWTs whose ID names an
// auth_sessions row, so signing out revokes the token before it expires.
type Auth struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	oauth  map[string]*oauth2.Config
	now    func() time.Time
	logger *zap.Logger
}

func NewAuth(db *gorm.DB, opts AuthOptions, logger *zap.Logger) *Auth {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := opts.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("no jwt secret configured, using a random one; sessions will not survive a restart")
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	oauth := opts.OAuth
	if oauth == nil {
		oauth = map[string]*oauth2.Config{}
	}
	return &Auth{
		db:     db,
		secret: []byte(secret),
		ttl:    ttl,
		oauth:  oauth,
		now:    time.Now,
		logger: logger,
	}
}

var oauthEndpoints = map[string]oauth2.Endpoint{
	"google": endpoints.Google,
	"github": endpoints.GitHub,
}

// OAuthConfigs builds provider configs for the providers tenantly knows.
// Sign-in returns to <siteURL>/onboarding.
func OAuthConfigs(providers map[string]config.OAuthProviderConfig, siteURL string) (map[string]*oauth2.Config, error) {
	out := make(map[string]*oauth2.Config, len(providers))
	for name, p := range providers {
		endpoint, ok := oauthEndpoints[name]
		if !ok {
			return nil, fmt.Errorf("unsupported oauth provider: %q", name)
		}
		scopes := p.Scopes
		if len(scopes) == 0 && name == "google" {
			scopes = []string{"openid", "email", "profile"}
		}
		out[name] = &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  strings.TrimRight(siteURL, "/") + "/onboarding",
			Scopes:       scopes,
		}
	}
	return out, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Invalid("email", "must be a valid email address")
	}
	return email, nil
}

// SignUp creates the auth user, its tenant profile and a first session.
func (a *Auth) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, apperr.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var session *Session
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("user %s: %w", email, apperr.ErrConflict)
		}

		user := &model.User{
			Email:        email,
			PasswordHash: string(hash),
			FullName:     fullName,
			Provider:     "email",
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		profile := &model.Profile{
			Base:     model.Base{ID: user.ID},
			FullName: fullName,
			Email:    email,
			Role:     model.RoleTenant,
		}
		if err := tx.Create(profile).Error; err != nil {
			return err
		}

		session, err = a.issue(tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		return nil, apperr.Remote("auth.signup", err)
	}

	a.logger.Info("user signed up", zap.String("user_id", session.User.ID))
	return session, nil
}

func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	var user model.User
	err = a.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Remote("auth.signin", err)
	}

	if user.PasswordHash == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	session, err := a.issue(a.db.WithContext(ctx), &user)
	if err != nil {
		return nil, apperr.Remote("auth.signin", err)
	}
	return session, nil
}

// SignInWithOAuth returns the provider authorization URL. The code exchange
// happens outside tenantly.
func (a *Auth) SignInWithOAuth(provider, redirectTo string) (*OAuthRedirect, error) {
	cfg, ok := a.oauth[provider]
	if !ok {
		return nil, apperr.Invalid("provider", fmt.Sprintf("unsupported oauth provider %q", provider))
	}

	c := *cfg
	if redirectTo != "" {
		c.RedirectURL = redirectTo
	}

	state := uuid.NewString()
	authURL := c.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return &OAuthRedirect{Provider: provider, URL: authURL, State: state}, nil
}

func (a *Auth) issue(tx *gorm.DB, user *model.User) (*Session, error) {
	now := a.now()
	row := &model.AuthSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(a.ttl),
		CreatedAt: now,
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, err
	}

	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        row.ID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(row.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Session{AccessToken: token, ExpiresAt: row.ExpiresAt, User: user}, nil
}

func (a *Auth) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// GetSession resolves a token to its session. A missing, malformed, expired
// or revoked token yields (nil, nil); only store failures are errors.
func (a *Auth) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	row, err := a.activeSession(ctx, token)
	if err != nil || row == nil {
		return nil, err
	}

	var user model.User
	err = a.db.WithContext(ctx).Where("id = ?", row.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Remote("auth.get_session", err)
	}

	return &Session{AccessToken: token, ExpiresAt: row.ExpiresAt, User: &user}, nil
}

// SessionExpiry reports when the session behind token ends. It reads only
// the session row, so callers holding a cached session can recheck the token
// on every use. An invalid, expired or revoked token is ErrNotAuthenticated.
func (a *Auth) SessionExpiry(ctx context.Context, token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, apperr.ErrNotAuthenticated
	}
	row, err := a.activeSession(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	if row == nil {
		return time.Time{}, apperr.ErrNotAuthenticated
	}
	return row.ExpiresAt, nil
}

// activeSession returns the live auth_sessions row behind token, or nil when
// the token does not verify or the row is missing, revoked or expired.
func (a *Auth) activeSession(ctx context.Context, token string) (*model.AuthSession, error) {
	claims, err := a.parse(token)
	if err != nil {
		a.logger.Debug("rejected session token", zap.Error(err))
		return nil, nil
	}

	var row model.AuthSession
	err = a.db.WithContext(ctx).Where("id = ?", claims.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Remote("auth.get_session", err)
	}
	if row.RevokedAt != nil || !a.now().Before(row.ExpiresAt) {
		return nil, nil
	}
	return &row, nil
}

// GetUser returns the user behind token or ErrNotAuthenticated.
func (a *Auth) GetUser(ctx context.Context, token string) (*model.User, error) {
	session, err := a.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	return session.User, nil
}

// SignOut revokes the session behind token. Unknown tokens are ignored.
func (a *Auth) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := a.parse(token)
	if err != nil {
		return nil
	}

	now := a.now()
	err = a.db.WithContext(ctx).
		Model(&model.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", claims.ID).
		Update("revoked_at", &now).Error
	if err != nil {
		return apperr.Remote("auth.signout", err)
	}
	return nil
}
