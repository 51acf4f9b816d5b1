package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/port/cache"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/port/messagequeue"
)

// tenantIDKey / tenantSubKey build the cache keys for tenant lookups.
func tenantIDKey(id int64) string { return fmt.Sprintf("tenant:id:%d", id) }

func tenantSubKey(subdomain string) string { return "tenant:sub:" + subdomain }

// evictionCache is the cache surface eviction needs: the regular port
// plus local-only drops for applying broadcasts from other instances
// (the publisher already purged the shared level).
type evictionCache interface {
	cache.Cache
	DropLocal(ctx context.Context, key string) error
	DropAllLocal(ctx context.Context) error
}

// Evictor coordinates cache invalidation across service instances.
// Local evictions purge both cache levels, then broadcast so every
// other instance drops its in-process entries.
type Evictor struct {
	store  database.Store
	cache  evictionCache
	perms  *PermissionService
	queue  messagequeue.Queue
	origin string
}

// NewEvictor creates an eviction coordinator. queue may be nil, in which
// case evictions stay instance-local.
func NewEvictor(store database.Store, c evictionCache, perms *PermissionService, queue messagequeue.Queue) *Evictor {
	return &Evictor{
		store:  store,
		cache:  c,
		perms:  perms,
		queue:  queue,
		origin: uuid.NewString(),
	}
}

// EvictUser drops the user's cached permission set everywhere.
func (e *Evictor) EvictUser(ctx context.Context, userID int64) error {
	if err := e.cache.Delete(ctx, e.perms.UserPermsKey(ctx, userID)); err != nil {
		return domain.Wrap(domain.KindInternal, "evict user permissions", err)
	}
	e.broadcast(ctx, messagequeue.SubjectEvictUser, messagequeue.EvictEvent{Origin: e.origin, UserID: userID})
	return nil
}

// EvictRole drops the cached permission set of every user holding the
// role. Role changes therefore take effect within one cache round-trip,
// not one TTL.
func (e *Evictor) EvictRole(ctx context.Context, roleID int64) error {
	userIDs, err := e.store.ListRoleUsers(ctx, roleID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "list role users", err)
	}
	for _, uid := range userIDs {
		if err := e.cache.Delete(ctx, e.perms.UserPermsKey(ctx, uid)); err != nil {
			return domain.Wrap(domain.KindInternal, "evict user permissions", err)
		}
	}
	e.broadcast(ctx, messagequeue.SubjectEvictRole,
		messagequeue.EvictEvent{Origin: e.origin, RoleID: roleID, UserIDs: userIDs})
	return nil
}

// EvictTenant drops the tenant's lookup entries everywhere.
func (e *Evictor) EvictTenant(ctx context.Context, tenantID int64, subdomain string) error {
	if err := e.cache.Delete(ctx, tenantIDKey(tenantID)); err != nil {
		return domain.Wrap(domain.KindInternal, "evict tenant", err)
	}
	if subdomain != "" {
		if err := e.cache.Delete(ctx, tenantSubKey(subdomain)); err != nil {
			return domain.Wrap(domain.KindInternal, "evict tenant", err)
		}
	}
	e.broadcast(ctx, messagequeue.SubjectEvictTenant,
		messagequeue.EvictEvent{Origin: e.origin, TenantID: tenantID, Subdomain: subdomain})
	return nil
}

// EvictAllPermissions orphans every cached permission set by bumping
// the generation. Used after bulk permission or role-assignment changes.
func (e *Evictor) EvictAllPermissions(ctx context.Context) error {
	if err := e.perms.BumpGeneration(ctx); err != nil {
		return domain.Wrap(domain.KindInternal, "bump permission generation", err)
	}
	e.broadcast(ctx, messagequeue.SubjectEvictPermissions, messagequeue.EvictEvent{Origin: e.origin})
	return nil
}

// ClearAll empties both cache levels everywhere.
func (e *Evictor) ClearAll(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return domain.Wrap(domain.KindInternal, "clear cache", err)
	}
	e.broadcast(ctx, messagequeue.SubjectEvictAll, messagequeue.EvictEvent{Origin: e.origin})
	return nil
}

// Start subscribes to eviction broadcasts from other instances. The
// returned function cancels all subscriptions.
func (e *Evictor) Start(ctx context.Context) (func(), error) {
	if e.queue == nil {
		return func() {}, nil
	}

	subjects := []string{
		messagequeue.SubjectEvictUser,
		messagequeue.SubjectEvictRole,
		messagequeue.SubjectEvictTenant,
		messagequeue.SubjectEvictPermissions,
		messagequeue.SubjectEvictAll,
	}

	var cancels []func()
	for _, subject := range subjects {
		cancel, err := e.queue.Subscribe(ctx, subject, e.handle)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return nil, domain.Wrap(domain.KindInternal, "subscribe "+subject, err)
		}
		cancels = append(cancels, cancel)
	}

	return func() {
		for _, c := range cancels {
			c()
		}
	}, nil
}

// handle applies a broadcast from another instance to the local cache
// level only; the publisher already purged the shared level.
func (e *Evictor) handle(ctx context.Context, subject string, data []byte) error {
	var ev messagequeue.EvictEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	if ev.Origin == e.origin {
		return nil
	}

	switch subject {
	case messagequeue.SubjectEvictUser:
		return e.cache.DropLocal(ctx, e.perms.UserPermsKey(ctx, ev.UserID))
	case messagequeue.SubjectEvictRole:
		// The affected holders ride in the event; the handler context
		// carries no tenant binding, so a store lookup here would fail.
		for _, uid := range ev.UserIDs {
			if err := e.cache.DropLocal(ctx, e.perms.UserPermsKey(ctx, uid)); err != nil {
				return err
			}
		}
		return nil
	case messagequeue.SubjectEvictTenant:
		if err := e.cache.DropLocal(ctx, tenantIDKey(ev.TenantID)); err != nil {
			return err
		}
		if ev.Subdomain != "" {
			return e.cache.DropLocal(ctx, tenantSubKey(ev.Subdomain))
		}
		return nil
	case messagequeue.SubjectEvictPermissions:
		// Drop the locally cached generation so the next read sees the bump.
		return e.cache.DropLocal(ctx, permsGenKey)
	case messagequeue.SubjectEvictAll:
		return e.cache.DropAllLocal(ctx)
	default:
		slog.Warn("unknown eviction subject", "subject", subject)
		return nil
	}
}

// broadcast publishes an eviction event, logging but not failing on
// publish errors: the shared cache level is already consistent.
func (e *Evictor) broadcast(ctx context.Context, subject string, ev messagequeue.EvictEvent) {
	if e.queue == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.queue.Publish(ctx, subject, payload); err != nil {
		slog.Warn("eviction broadcast failed", "subject", subject, "error", err)
	}
}
