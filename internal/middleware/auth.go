package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lachgar03/crm-project/internal/service"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// Auth returns middleware that authenticates bearer tokens. The stage
// is fail-open: requests without a credential, or with one that does
// not authenticate, pass through without a principal and are rejected
// at authorization instead. The failure is logged here so a garbled
// token is still visible in the request trail.
//
// The token's tenant claim is authoritative: it replaces whatever the
// resolver bound, so a spoofed X-Tenant-ID header can never cross
// tenants once a valid token is presented.
func Auth(auth *service.AuthService, tokens *service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header || raw == "" {
				slog.Warn("malformed authorization header", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				slog.Warn("bearer token rejected", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				slog.Warn("bearer token rejected", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := tenantctx.WithTenant(r.Context(), claims.TenantID)
			ctx = tenantctx.WithBearer(ctx, raw)

			principal, err := auth.Principal(ctx, userID)
			if err != nil {
				slog.Warn("principal load rejected", "path", r.URL.Path, "user_id", userID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			ctx = tenantctx.WithPrincipal(ctx, principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
