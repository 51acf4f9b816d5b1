package middleware

import (
	"net/http"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/service"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// RequirePermission returns middleware that rejects the request unless
// the authenticated principal holds the (resource, action) permission.
// Super admins always pass. Unauthenticated requests get 401; valid
// principals without the grant get 403.
func RequirePermission(perms *service.PermissionService, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := tenantctx.Principal(r.Context()); !ok {
				writeError(w, domain.E(domain.KindInvalidToken, "authentication required"))
				return
			}
			if err := perms.Require(r.Context(), resource, action); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin returns middleware restricting a route to the
// platform's super administrators.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := tenantctx.Principal(r.Context())
		if !ok {
			writeError(w, domain.E(domain.KindInvalidToken, "authentication required"))
			return
		}
		if !u.IsSuperAdmin() {
			writeError(w, domain.E(domain.KindAccessDenied, "super administrator access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
