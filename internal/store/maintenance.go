package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/repository"
)

// MaintenanceStore caches the maintenance requests visible to a session.
type MaintenanceStore struct {
	repo    *repository.MaintenanceRepository
	user    UserSource
	triager Triager
	logger  *zap.Logger

	mu      sync.RWMutex
	items   collection[model.MaintenanceRequest]
	loading bool
	err     error
}

func NewMaintenanceStore(repo *repository.MaintenanceRepository, user UserSource, triager Triager, logger *zap.Logger) *MaintenanceStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceStore{
		repo:    repo,
		user:    user,
		triager: triager,
		logger:  logger,
		items:   collection[model.MaintenanceRequest]{id: func(r *model.MaintenanceRequest) string { return r.ID }},
	}
}

func (s *MaintenanceStore) Requests() []model.MaintenanceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.snapshot()
}

func (s *MaintenanceStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *MaintenanceStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *MaintenanceStore) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// FetchRequests loads every request the user may see: their own as a tenant
// and those on their properties as a landlord.
func (s *MaintenanceStore) FetchRequests(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	var reqs []model.MaintenanceRequest
	id := s.user.UserID()
	err := apperr.ErrNotAuthenticated
	if id != "" {
		reqs, err = s.repo.ListVisibleTo(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.items.replace(reqs)
	return nil
}

// CreateRequest files a pending request and puts it at the front of the list.
// When a triager is configured the request is annotated before it returns; a
// triage failure is logged and does not fail the request.
func (s *MaintenanceStore) CreateRequest(ctx context.Context, in repository.MaintenanceInput) (*model.MaintenanceRequest, error) {
	id := s.user.UserID()
	if id == "" {
		return nil, s.fail(apperr.ErrNotAuthenticated)
	}
	req, err := s.repo.Create(ctx, id, in)
	if err != nil {
		return nil, s.fail(err)
	}

	if s.triager != nil {
		req = s.triage(ctx, req)
	}

	s.mu.Lock()
	s.items.prepend(*req)
	s.mu.Unlock()
	return req, nil
}

func (s *MaintenanceStore) triage(ctx context.Context, req *model.MaintenanceRequest) *model.MaintenanceRequest {
	a, err := s.triager.Triage(ctx, req)
	if err != nil {
		s.logger.Warn("maintenance triage failed", zap.String("request_id", req.ID), zap.Error(err))
		return req
	}
	annotated, err := s.repo.ApplyTriage(ctx, req.ID, *a)
	if err != nil {
		s.logger.Warn("storing maintenance triage failed", zap.String("request_id", req.ID), zap.Error(err))
		return req
	}
	return annotated
}

// UpdateStatus changes a request's status. The cached row keeps its joined
// property and tenant.
func (s *MaintenanceStore) UpdateStatus(ctx context.Context, requestID string, status model.MaintenanceStatus) (*model.MaintenanceRequest, error) {
	updated, err := s.repo.UpdateStatus(ctx, s.user.UserID(), requestID, status)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.items.merge(requestID, func(cur *model.MaintenanceRequest) {
		property, tenant := cur.Property, cur.Tenant
		*cur = *updated
		if cur.Property == nil {
			cur.Property = property
		}
		if cur.Tenant == nil {
			cur.Tenant = tenant
		}
	})
	s.mu.Unlock()
	return updated, nil
}
