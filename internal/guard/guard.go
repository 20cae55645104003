// Package guard decides whether a navigation may proceed for a session and
// where to send it otherwise.
package guard

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/beesaferoot/tenantly/internal/metrics"
)

// StateLoader loads the session state behind key, usually an access token.
type StateLoader interface {
	LoadState(ctx context.Context, key string) (State, error)
}

// StateLoaderFunc adapts a function to StateLoader.
type StateLoaderFunc func(ctx context.Context, key string) (State, error)

func (f StateLoaderFunc) LoadState(ctx context.Context, key string) (State, error) {
	return f(ctx, key)
}

// LoadTimeout bounds a shared state load. The load runs detached from the
// request that started it, so one cancelled caller does not fail the others.
const LoadTimeout = 10 * time.Second

type Guard struct {
	routes  *Routes
	loader  StateLoader
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(routes *Routes, loader StateLoader, m *metrics.Metrics, logger *zap.Logger) *Guard {
	if routes == nil {
		routes = DefaultRoutes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{routes: routes, loader: loader, metrics: m, logger: logger}
}

func (g *Guard) Routes() *Routes {
	return g.routes
}

// State loads the session state for key. Concurrent calls for the same key
// share one load. A failed load yields Anonymous.
func (g *Guard) State(ctx context.Context, key string) State {
	if key == "" {
		return Anonymous{}
	}

	ch := g.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		return g.loader.LoadState(loadCtx, key)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		g.logger.Debug("navigation abandoned while loading session state", zap.Error(ctx.Err()))
		return Anonymous{}
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		g.logger.Warn("session state load failed, treating as anonymous", zap.Error(err))
		return Anonymous{}
	}
	if shared {
		g.logger.Debug("joined in-flight session state load")
	}
	s, ok := v.(State)
	if !ok || s == nil {
		return Anonymous{}
	}
	return s
}

// Resolve decides a navigation to path for the session behind key.
func (g *Guard) Resolve(ctx context.Context, key, path string) Decision {
	d := g.routes.Resolve(path, g.State(ctx, key))

	outcome := "allow"
	if !d.Allow {
		outcome = "redirect"
	}
	g.metrics.RecordGuardDecision(outcome)
	g.logger.Debug("navigation decided",
		zap.String("path", path),
		zap.Bool("allow", d.Allow),
		zap.String("redirect", d.Redirect),
	)
	return d
}
