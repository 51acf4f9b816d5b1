package http

import (
	"net/http"

	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/port/messagequeue"
	"github.com/lachgar03/crm-project/internal/service"
)

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	auth         *service.AuthService
	registration *service.RegistrationService
	tenants      *service.TenantService
	users        *service.UserService
	roles        *service.RoleService
	perms        *service.PermissionService

	store database.Store
	queue messagequeue.Queue
}

// NewHandlers creates the handler set.
func NewHandlers(
	auth *service.AuthService,
	registration *service.RegistrationService,
	tenants *service.TenantService,
	users *service.UserService,
	roles *service.RoleService,
	perms *service.PermissionService,
	store database.Store,
	queue messagequeue.Queue,
) *Handlers {
	return &Handlers{
		auth:         auth,
		registration: registration,
		tenants:      tenants,
		users:        users,
		roles:        roles,
		perms:        perms,
		store:        store,
		queue:        queue,
	}
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is the readiness probe: the database must answer and the message
// queue connection must be up.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"queue":    "ok",
	}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.queue != nil && !h.queue.IsConnected() {
		checks["queue"] = "disconnected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, checks)
}
