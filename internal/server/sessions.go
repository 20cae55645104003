package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/guard"
	"github.com/beesaferoot/tenantly/internal/metrics"
	"github.com/beesaferoot/tenantly/internal/store"
)

type sessionEntry struct {
	session *store.Session
	// expires is the idle deadline; tokenExpires is when the token itself ends.
	expires      time.Time
	tokenExpires time.Time
}

// Sessions keeps one store.Session per access token. An entry lives for ttl
// after its last use and never past the token's own expiry. Every use
// rechecks the token against the gateway, so a revoked token is dropped at
// its next request. Signing out drops the entry and everything it holds.
type Sessions struct {
	deps    store.Deps
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

func NewSessions(deps store.Deps, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Sessions {
	return &Sessions{
		deps:    deps,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*sessionEntry),
	}
}

// New returns a fresh, unregistered session.
func (s *Sessions) New() *store.Session {
	return store.NewSession(s.deps)
}

// Get returns the session for token, restoring it from the gateway on a miss.
// Concurrent misses for one token share a single restore.
func (s *Sessions) Get(ctx context.Context, token string) (*store.Session, error) {
	if token == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	if sess := s.lookup(token); sess != nil {
		if _, err := s.verify(ctx, token); err != nil {
			return nil, err
		}
		return sess, nil
	}

	v, err, _ := s.group.Do(token, func() (interface{}, error) {
		if sess := s.lookup(token); sess != nil {
			return sess, nil
		}
		// shared by every waiter, so not tied to the first caller's request
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), guard.LoadTimeout)
		defer cancel()
		expiresAt, err := s.verify(ctx, token)
		if err != nil {
			return nil, err
		}
		sess := s.New()
		if err := sess.Auth.Restore(ctx, token); err != nil {
			return nil, err
		}
		if sess.Auth.UserID() == "" {
			return nil, apperr.ErrNotAuthenticated
		}
		s.Put(token, expiresAt, sess)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Session), nil
}

// verify checks that token is still live and drops it from the registry when
// it is not.
func (s *Sessions) verify(ctx context.Context, token string) (time.Time, error) {
	expiresAt, err := s.deps.Gateway.Auth.SessionExpiry(ctx, token)
	if errors.Is(err, apperr.ErrNotAuthenticated) {
		s.Drop(token)
	}
	return expiresAt, err
}

func (s *Sessions) lookup(token string) *store.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return nil
	}
	now := s.now()
	if now.After(e.expires) || !now.Before(e.tokenExpires) {
		delete(s.entries, token)
		s.metrics.SetActiveSessions(len(s.entries))
		return nil
	}
	e.expires = now.Add(s.ttl)
	return e.session
}

// Put registers sess under token until the token expires at expiresAt.
func (s *Sessions) Put(token string, expiresAt time.Time, sess *store.Session) {
	s.mu.Lock()
	s.entries[token] = &sessionEntry{session: sess, expires: s.now().Add(s.ttl), tokenExpires: expiresAt}
	n := len(s.entries)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(n)
}

// Drop forgets token.
func (s *Sessions) Drop(token string) {
	s.mu.Lock()
	delete(s.entries, token)
	n := len(s.entries)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(n)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// LoadState implements guard.StateLoader. The user is reloaded on every call
// so a profile completed elsewhere is seen at the next navigation.
func (s *Sessions) LoadState(ctx context.Context, token string) (guard.State, error) {
	sess, err := s.Get(ctx, token)
	if errors.Is(err, apperr.ErrNotAuthenticated) {
		return guard.Anonymous{}, nil
	}
	if err != nil {
		return nil, err
	}
	state, err := sess.Auth.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state.(guard.Anonymous); ok {
		s.Drop(token)
	}
	return state, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	now := s.now()
	removed := 0
	for token, e := range s.entries {
		if now.After(e.expires) || !now.Before(e.tokenExpires) {
			delete(s.entries, token)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	return removed
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired sessions dropped", zap.Int("count", n))
			}
		}
	}
}
