package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	crmotel "github.com/lachgar03/crm-project/internal/adapter/otel"
	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/cache"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// permsGenKey holds the current permission-cache generation. Bumping it
// orphans every stamped key at once, which is how a full permission
// invalidation avoids enumerating users.
const permsGenKey = "perms:gen"

// PermissionService evaluates whether the ambient principal may perform
// an action on a resource. Effective permission sets are cached per user
// under generation-stamped keys.
type PermissionService struct {
	store   database.Store
	cache   cache.Cache
	ttl     time.Duration
	metrics *crmotel.Metrics
}

// NewPermissionService creates a new permission service.
func NewPermissionService(store database.Store, c cache.Cache, ttl time.Duration) *PermissionService {
	return &PermissionService{store: store, cache: c, ttl: ttl}
}

// SetMetrics attaches metric instruments. Optional; counters are
// skipped when unset.
func (s *PermissionService) SetMetrics(m *crmotel.Metrics) {
	s.metrics = m
}

// generation reads the current cache generation, defaulting to 1.
func (s *PermissionService) generation(ctx context.Context) int64 {
	raw, found, err := s.cache.Get(ctx, permsGenKey)
	if err != nil || !found {
		return 1
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || gen < 1 {
		return 1
	}
	return gen
}

// userPermsKey returns the cache key for a user's effective permission
// set under the current generation.
func (s *PermissionService) userPermsKey(ctx context.Context, userID int64) string {
	return fmt.Sprintf("perms:g%d:user:%d", s.generation(ctx), userID)
}

// UserPermsKey exposes the stamped key for eviction.
func (s *PermissionService) UserPermsKey(ctx context.Context, userID int64) string {
	return s.userPermsKey(ctx, userID)
}

// BumpGeneration invalidates every cached permission set at once.
func (s *PermissionService) BumpGeneration(ctx context.Context) error {
	next := s.generation(ctx) + 1
	return s.cache.Set(ctx, permsGenKey, []byte(strconv.FormatInt(next, 10)), 0)
}

// HasPermission reports whether the ambient principal may perform action
// on resource. Super admins bypass the permission catalog entirely.
// Matching is case-insensitive on both resource and action.
func (s *PermissionService) HasPermission(ctx context.Context, resource, action string) (bool, error) {
	u, ok := tenantctx.Principal(ctx)
	if !ok {
		slog.Warn("permission check without authenticated principal",
			"resource", resource, "action", action)
		return false, nil
	}

	ctx, span := crmotel.StartPermissionSpan(ctx, resource, action)
	defer span.End()

	granted, err := s.evaluate(ctx, u, resource, action)
	if err != nil {
		return false, err
	}

	if s.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("resource", strings.ToLower(resource)),
			attribute.String("action", strings.ToLower(action)),
		)
		s.metrics.PermissionChecks.Add(ctx, 1, attrs)
		if !granted {
			s.metrics.PermissionDenials.Add(ctx, 1, attrs)
		}
	}
	return granted, nil
}

func (s *PermissionService) evaluate(ctx context.Context, u *user.User, resource, action string) (bool, error) {
	if u.IsSuperAdmin() {
		return true, nil
	}

	perms, err := s.effectivePermissions(ctx, u.ID)
	if err != nil {
		return false, err
	}

	want := strings.ToLower(resource) + ":" + strings.ToLower(action)
	for _, name := range perms {
		if name == want {
			return true, nil
		}
	}
	return false, nil
}

// Require returns an access-denied error unless the ambient principal
// holds the permission.
func (s *PermissionService) Require(ctx context.Context, resource, action string) error {
	ok, err := s.HasPermission(ctx, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Ef(domain.KindAccessDenied, "missing permission %s:%s",
			strings.ToLower(resource), strings.ToLower(action))
	}
	return nil
}

// ListCatalog returns the global permission catalog.
func (s *PermissionService) ListCatalog(ctx context.Context) ([]role.Permission, error) {
	return s.store.ListPermissions(ctx)
}

// effectivePermissions returns the principal's de-duplicated permission
// names, from cache when possible. Cache failures fall back to the
// store; authorization never fails because the cache is down.
func (s *PermissionService) effectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	key := s.userPermsKey(ctx, userID)

	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var names []string
		if err := json.Unmarshal(raw, &names); err == nil {
			return names, nil
		}
	} else if err != nil {
		slog.Warn("permission cache read failed", "user_id", userID, "error", err)
	}

	roles, err := s.store.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load roles", err)
	}

	perms := role.EffectivePermissions(roles)
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name())
	}

	if raw, err := json.Marshal(names); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			slog.Warn("permission cache write failed", "user_id", userID, "error", err)
		}
	}
	return names, nil
}
