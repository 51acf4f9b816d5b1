package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/service"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

const (
	headerTenantID        = "X-Tenant-ID"
	headerTenantSubdomain = "X-Tenant-Subdomain"
)

// publicPaths are exempt from authentication. Tenant resolution still
// runs for them: login needs the ambient tenant.
var publicPaths = map[string]bool{
	"/health":               true,
	"/health/ready":         true,
	"/api/v1/auth/register": true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/refresh":  true,
}

// PublicPath reports whether the path skips authentication.
func PublicPath(path string) bool {
	return publicPaths[path]
}

// resolutionExempt paths never need an ambient tenant: registration
// creates the tenant it would otherwise resolve. Stray tenant headers
// on them are ignored rather than validated.
var resolutionExempt = map[string]bool{
	"/api/v1/auth/register": true,
}

// TenantResolver returns middleware that binds the ambient tenant from,
// in order of precedence: the X-Tenant-ID header, the X-Tenant-Subdomain
// header, then the first label of the Host. Explicit headers that fail
// to resolve are hard errors; Host-derived resolution is best-effort and
// leaves the context unbound on failure.
func TenantResolver(tenants *service.TenantService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolutionExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			if raw := r.Header.Get(headerTenantID); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					writeError(w, domain.Ef(domain.KindValidation, "invalid %s header", headerTenantID))
					return
				}
				t, err := tenants.Get(ctx, id)
				if err != nil {
					writeError(w, err)
					return
				}
				ctx = tenantctx.WithTenant(ctx, t.ID)
				ctx = tenantctx.WithSubdomain(ctx, t.Subdomain)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sub := r.Header.Get(headerTenantSubdomain); sub != "" {
				t, err := tenants.ResolveSubdomain(ctx, strings.ToLower(strings.TrimSpace(sub)))
				if err != nil {
					writeError(w, err)
					return
				}
				ctx = tenantctx.WithTenant(ctx, t.ID)
				ctx = tenantctx.WithSubdomain(ctx, t.Subdomain)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if sub := hostSubdomain(r.Host); sub != "" {
				if t, err := tenants.ResolveSubdomain(ctx, sub); err == nil {
					ctx = tenantctx.WithTenant(ctx, t.ID)
					ctx = tenantctx.WithSubdomain(ctx, t.Subdomain)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// hostSubdomain extracts a candidate tenant subdomain from the request
// host: the first label of a multi-label, non-IP hostname.
func hostSubdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	return labels[0]
}
