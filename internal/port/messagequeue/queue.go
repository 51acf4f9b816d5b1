// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the auth service's NATS subjects.
//
// Eviction subjects carry JSON EvictEvent payloads and are fanned out to
// every instance so each can drop its local (L1) entries; the shared L2
// bucket is purged once by the publishing instance.
const (
	SubjectEvictUser        = "authcache.evict.user"
	SubjectEvictRole        = "authcache.evict.role"
	SubjectEvictTenant      = "authcache.evict.tenant"
	SubjectEvictPermissions = "authcache.evict.permissions"
	SubjectEvictAll         = "authcache.evict.all"

	// Tenant lifecycle events consumed by sibling CRM services.
	SubjectTenantRegistered = "tenants.registered"
	SubjectTenantStatus     = "tenants.status"
)

// EvictEvent is the payload published on eviction subjects.
type EvictEvent struct {
	// Origin identifies the publishing instance so it can skip its own
	// broadcast (it already evicted locally).
	Origin string `json:"origin"`
	UserID int64  `json:"user_id,omitempty"`
	RoleID int64  `json:"role_id,omitempty"`
	// UserIDs carries the holders affected by a role eviction so
	// receivers can drop their entries without a store lookup; handler
	// contexts have no tenant binding to query with.
	UserIDs   []int64 `json:"user_ids,omitempty"`
	TenantID  int64   `json:"tenant_id,omitempty"`
	Subdomain string  `json:"subdomain,omitempty"`
}
