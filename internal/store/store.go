// Package store holds the per-session state of a signed-in user: who they
// are and the collections they are working with. A store changes only after
// the gateway confirms a write.
package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
)

// UserSource reports the signed-in user's id, or "" when signed out.
type UserSource interface {
	UserID() string
}

// Triager annotates a new maintenance request.
type Triager interface {
	Triage(ctx context.Context, req *model.MaintenanceRequest) (*model.TriageAnnotation, error)
}

// Deps are the shared collaborators every session is built from.
type Deps struct {
	Gateway     *gateway.Client
	Profiles    *repository.ProfileRepository
	Properties  *repository.PropertyRepository
	Maintenance *repository.MaintenanceRepository
	Triager     Triager
	Logger      *zap.Logger
}

// NewDeps builds the repositories over gw. triager may be nil.
func NewDeps(gw *gateway.Client, triager Triager, logger *zap.Logger) Deps {
	if logger == nil {
		logger = gw.Logger()
	}
	return Deps{
		Gateway:     gw,
		Profiles:    repository.NewProfileRepository(gw, logger),
		Properties:  repository.NewPropertyRepository(gw, logger),
		Maintenance: repository.NewMaintenanceRepository(gw, logger),
		Triager:     triager,
		Logger:      logger,
	}
}

// Session bundles the stores of one signed-in session. Dropping the Session
// drops all of its state.
type Session struct {
	Auth        *AuthStore
	Properties  *PropertyStore
	Maintenance *MaintenanceStore
}

func NewSession(d Deps) *Session {
	auth := NewAuthStore(d.Gateway, d.Profiles, d.Logger)
	return &Session{
		Auth:        auth,
		Properties:  NewPropertyStore(d.Properties, auth, d.Logger),
		Maintenance: NewMaintenanceStore(d.Maintenance, auth, d.Triager, d.Logger),
	}
}

// collection is an ordered list of rows keyed by id.
type collection[T any] struct {
	items []T
	id    func(*T) string
}

func (c *collection[T]) replace(items []T) {
	if items == nil {
		items = []T{}
	}
	c.items = items
}

func (c *collection[T]) prepend(item T) {
	c.items = append([]T{item}, c.items...)
}

// merge applies fn to the item with id. It reports whether one was found.
func (c *collection[T]) merge(id string, fn func(*T)) bool {
	for i := range c.items {
		if c.id(&c.items[i]) == id {
			fn(&c.items[i])
			return true
		}
	}
	return false
}

func (c *collection[T]) remove(id string) {
	kept := c.items[:0]
	for i := range c.items {
		if c.id(&c.items[i]) != id {
			kept = append(kept, c.items[i])
		}
	}
	c.items = kept
}

func (c *collection[T]) snapshot() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
