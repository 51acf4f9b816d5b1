package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lachgar03/crm-project/internal/middleware"
	"github.com/lachgar03/crm-project/internal/service"
)

// NewRouter builds the chi router with the full middleware chain.
//
// The auth endpoints sit behind the per-IP rate limiter because they are
// the credential-guessing surface. Everything under /api/v1 runs tenant
// resolution first and token authentication second, so a presented
// token's tenant claim always wins over the resolved binding.
func NewRouter(
	h *Handlers,
	auth *service.AuthService,
	tokens *service.TokenService,
	tenants *service.TenantService,
	perms *service.PermissionService,
	limiter *middleware.RateLimiter,
	corsOrigin string,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(SecurityHeaders)
	r.Use(CORS(corsOrigin))

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.TenantResolver(tenants))
		r.Use(middleware.Auth(auth, tokens))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limiter.Handler)
				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
				r.Post("/refresh", h.Refresh)
			})
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequirePermission(perms, "users", "read")).Get("/", h.ListUsers)
			r.With(middleware.RequirePermission(perms, "users", "create")).Post("/", h.CreateUser)
			r.With(middleware.RequirePermission(perms, "users", "read")).Get("/{id}", h.GetUser)
			r.With(middleware.RequirePermission(perms, "users", "update")).Put("/{id}", h.UpdateUser)
			r.With(middleware.RequirePermission(perms, "users", "delete")).Delete("/{id}", h.DeleteUser)
			r.With(middleware.RequirePermission(perms, "users", "update")).Put("/{id}/roles", h.AssignUserRoles)
		})

		r.Route("/roles", func(r chi.Router) {
			r.With(middleware.RequirePermission(perms, "roles", "read")).Get("/", h.ListRoles)
			r.With(middleware.RequirePermission(perms, "roles", "create")).Post("/", h.CreateRole)
			r.With(middleware.RequirePermission(perms, "roles", "read")).Get("/{id}", h.GetRole)
			r.With(middleware.RequirePermission(perms, "roles", "update")).Put("/{id}", h.UpdateRole)
			r.With(middleware.RequirePermission(perms, "roles", "delete")).Delete("/{id}", h.DeleteRole)
			r.With(middleware.RequirePermission(perms, "roles", "update")).Put("/{id}/permissions", h.AssignRolePermissions)
		})

		r.With(middleware.RequirePermission(perms, "roles", "read")).
			Get("/permissions", h.ListPermissions)

		// Tenant administration is the platform operator's surface.
		r.Route("/tenants", func(r chi.Router) {
			r.Use(middleware.RequireSuperAdmin)
			r.Get("/", h.ListTenants)
			r.Get("/{id}", h.GetTenant)
			r.Put("/{id}", h.UpdateTenant)
			r.Put("/{id}/status", h.SetTenantStatus)
		})
	})

	return r
}
