package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
)

// PropertyStore caches the property list a session is looking at.
type PropertyStore struct {
	repo   *repository.PropertyRepository
	user   UserSource
	logger *zap.Logger

	mu      sync.RWMutex
	items   collection[model.Property]
	loading bool
	err     error
}

func NewPropertyStore(repo *repository.PropertyRepository, user UserSource, logger *zap.Logger) *PropertyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyStore{
		repo:   repo,
		user:   user,
		logger: logger,
		items:  collection[model.Property]{id: func(p *model.Property) string { return p.ID }},
	}
}

func (s *PropertyStore) Properties() []model.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.snapshot()
}

func (s *PropertyStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *PropertyStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *PropertyStore) fetch(list func() ([]model.Property, error)) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	props, err := list()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.items.replace(props)
	return nil
}

func (s *PropertyStore) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// FetchMyProperties loads the signed-in landlord's properties.
func (s *PropertyStore) FetchMyProperties(ctx context.Context) error {
	return s.fetch(func() ([]model.Property, error) {
		id := s.user.UserID()
		if id == "" {
			return nil, apperr.ErrNotAuthenticated
		}
		return s.repo.ListByLandlord(ctx, id)
	})
}

func (s *PropertyStore) FetchAllProperties(ctx context.Context) error {
	return s.fetch(func() ([]model.Property, error) {
		return s.repo.ListAll(ctx)
	})
}

// AddProperty creates a property for the signed-in landlord and puts it at
// the front of the list.
func (s *PropertyStore) AddProperty(ctx context.Context, in repository.PropertyInput) (*model.Property, error) {
	id := s.user.UserID()
	if id == "" {
		return nil, s.fail(apperr.ErrNotAuthenticated)
	}
	p, err := s.repo.Create(ctx, id, in)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.items.prepend(*p)
	s.mu.Unlock()
	return p, nil
}

// UpdateProperty replaces the cached row with the updated one when it is in
// the list.
func (s *PropertyStore) UpdateProperty(ctx context.Context, propertyID string, patch repository.PropertyPatch) (*model.Property, error) {
	p, err := s.repo.Update(ctx, s.user.UserID(), propertyID, patch)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.items.merge(propertyID, func(cur *model.Property) { *cur = *p })
	s.mu.Unlock()
	return p, nil
}

func (s *PropertyStore) DeleteProperty(ctx context.Context, propertyID string) error {
	if err := s.repo.Delete(ctx, s.user.UserID(), propertyID); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.items.remove(propertyID)
	s.mu.Unlock()
	return nil
}
