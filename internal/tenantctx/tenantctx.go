// Package tenantctx binds the ambient tenant and principal of a logical
// request onto its context.Context.
//
// The bindings are plain context values: they are visible to every
// synchronous call made with that context, invisible to concurrently
// running requests, and die with the request. Code that schedules work
// onto another goroutine must snapshot them explicitly (see package
// propagate); code that must temporarily assume another tenant derives a
// scoped child context via RunWithTenant.
package tenantctx

import (
	"context"
	"log/slog"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/user"
)

type tenantIDKey struct{}
type subdomainKey struct{}
type principalKey struct{}
type bearerKey struct{}

// WithTenant returns a context carrying the tenant binding. A non-positive
// id is rejected: the call logs a warning and returns ctx unchanged.
func WithTenant(ctx context.Context, tenantID int64) context.Context {
	if tenantID <= 0 {
		slog.Warn("refusing to bind invalid tenant id", "tenant_id", tenantID)
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// TenantID returns the bound tenant id, or false when no binding is set.
func TenantID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(tenantIDKey{}).(int64)
	return id, ok
}

// RequireTenantID returns the bound tenant id or a ContextNotBound error.
// Hitting that error means a code path reached tenant-scoped data access
// without going through resolution — an integration defect, not user input.
func RequireTenantID(ctx context.Context) (int64, error) {
	id, ok := TenantID(ctx)
	if !ok {
		return 0, domain.E(domain.KindContextNotBound, "tenant context is not set for this request")
	}
	return id, nil
}

// IsBound reports whether a tenant binding is present.
func IsBound(ctx context.Context) bool {
	_, ok := TenantID(ctx)
	return ok
}

// WithSubdomain returns a context carrying the tenant's subdomain.
func WithSubdomain(ctx context.Context, subdomain string) context.Context {
	if subdomain == "" {
		return ctx
	}
	return context.WithValue(ctx, subdomainKey{}, subdomain)
}

// Subdomain returns the bound subdomain, or empty when unset.
func Subdomain(ctx context.Context) string {
	s, _ := ctx.Value(subdomainKey{}).(string)
	return s
}

// RunWithTenant runs fn with a nested tenant binding. The derived context
// is discarded when fn returns, so the caller's ambient binding (or the
// absence of one) is untouched whether fn succeeds or fails. Bootstrap
// flows use this to create a tenant's first user under that tenant's
// scope without corrupting the surrounding request's binding.
func RunWithTenant(ctx context.Context, tenantID int64, fn func(context.Context) error) error {
	return fn(WithTenant(ctx, tenantID))
}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, u *user.User) context.Context {
	if u == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, u)
}

// Principal returns the authenticated principal, or false when the
// request is unauthenticated.
func Principal(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(principalKey{}).(*user.User)
	return u, ok
}

// WithBearer returns a context carrying the inbound bearer credential so
// outbound calls can forward it unmodified.
func WithBearer(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

// Bearer returns the inbound bearer credential, or empty when none was
// presented.
func Bearer(ctx context.Context) string {
	t, _ := ctx.Value(bearerKey{}).(string)
	return t
}

// Snapshot captures every binding for propagation onto another execution
// unit. Install applies the snapshot to a fresh context.
type Snapshot struct {
	tenantID  int64
	bound     bool
	subdomain string
	principal *user.User
	bearer    string
}

// Capture snapshots the ambient bindings at schedule time.
func Capture(ctx context.Context) Snapshot {
	id, ok := TenantID(ctx)
	u, _ := Principal(ctx)
	return Snapshot{
		tenantID:  id,
		bound:     ok,
		subdomain: Subdomain(ctx),
		principal: u,
		bearer:    Bearer(ctx),
	}
}

// Install applies the snapshot onto ctx, returning a context that carries
// exactly the captured bindings.
func (s Snapshot) Install(ctx context.Context) context.Context {
	if s.bound {
		ctx = WithTenant(ctx, s.tenantID)
	}
	ctx = WithSubdomain(ctx, s.subdomain)
	ctx = WithPrincipal(ctx, s.principal)
	ctx = WithBearer(ctx, s.bearer)
	return ctx
}

// TenantID returns the captured tenant id, or false when the originating
// request had no binding.
func (s Snapshot) TenantID() (int64, bool) {
	return s.tenantID, s.bound
}
