package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/port/cache"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/port/messagequeue"
)

// TenantService manages tenants and serves the cached subdomain lookups
// the resolver middleware performs on every request.
type TenantService struct {
	store   database.Store
	cache   cache.Cache
	ttl     time.Duration
	evictor *Evictor
	queue   messagequeue.Queue
}

// NewTenantService creates a new tenant service. evictor and queue may
// be nil in tests.
func NewTenantService(store database.Store, c cache.Cache, ttl time.Duration, evictor *Evictor, queue messagequeue.Queue) *TenantService {
	return &TenantService{store: store, cache: c, ttl: ttl, evictor: evictor, queue: queue}
}

// ResolveSubdomain returns the tenant owning the subdomain, from cache
// when possible. Unknown subdomains are a tenant-not-found error.
func (s *TenantService) ResolveSubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	key := tenantSubKey(subdomain)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var t tenant.Tenant
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
	}

	t, err := s.store.GetTenantBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Ef(domain.KindTenantNotFound, "no tenant for subdomain %q", subdomain)
		}
		return nil, domain.Wrap(domain.KindInternal, "resolve subdomain", err)
	}

	s.cacheTenant(ctx, t)
	return t, nil
}

// Get returns a tenant by ID, from cache when possible.
func (s *TenantService) Get(ctx context.Context, id int64) (*tenant.Tenant, error) {
	key := tenantIDKey(id)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var t tenant.Tenant
		if err := json.Unmarshal(raw, &t); err == nil {
			return &t, nil
		}
	}

	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindTenantNotFound, "tenant not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "load tenant", err)
	}

	s.cacheTenant(ctx, t)
	return t, nil
}

// List returns all tenants. Reserved for super admins at the HTTP layer.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Update applies partial changes to a tenant and invalidates its cached
// lookups. Status changes are announced to sibling services.
func (s *TenantService) Update(ctx context.Context, id int64, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	if req.Status != nil && *req.Status != tenant.StatusActive && *req.Status != tenant.StatusSuspended {
		return nil, domain.Ef(domain.KindValidation, "unknown tenant status %q", *req.Status)
	}

	t, err := s.store.UpdateTenant(ctx, id, req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindTenantNotFound, "tenant not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "update tenant", err)
	}

	if s.evictor != nil {
		if err := s.evictor.EvictTenant(ctx, t.ID, t.Subdomain); err != nil {
			slog.Warn("tenant eviction failed", "tenant_id", t.ID, "error", err)
		}
	}
	if req.Status != nil {
		s.announceStatus(ctx, t)
	}
	return t, nil
}

// SetStatus suspends or reactivates a tenant.
func (s *TenantService) SetStatus(ctx context.Context, id int64, status string) (*tenant.Tenant, error) {
	return s.Update(ctx, id, tenant.UpdateRequest{Status: &status})
}

// cacheTenant stores the tenant under both its lookup keys.
func (s *TenantService) cacheTenant(ctx context.Context, t *tenant.Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, tenantIDKey(t.ID), raw, s.ttl); err != nil {
		slog.Warn("tenant cache write failed", "tenant_id", t.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, tenantSubKey(t.Subdomain), raw, s.ttl); err != nil {
		slog.Warn("tenant cache write failed", "tenant_id", t.ID, "error", err)
	}
}

// announceStatus publishes the tenant-status lifecycle event.
func (s *TenantService) announceStatus(ctx context.Context, t *tenant.Tenant) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTenantStatus, payload); err != nil {
		slog.Warn("tenant lifecycle publish failed", "tenant_id", t.ID, "error", err)
	}
}
