package http

import (
	"net/http"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
)

// ListTenants returns all tenants. Super-admin only.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

// GetTenant returns one tenant by ID. Super-admin only.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	t, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTenant updates a tenant's name, plan, or status. Super-admin only.
func (h *Handlers) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[tenant.UpdateRequest](w, r)
	if !ok {
		return
	}

	t, err := h.tenants.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type tenantStatusRequest struct {
	Status string `json:"status"`
}

// SetTenantStatus suspends or reactivates a tenant. Super-admin only.
func (h *Handlers) SetTenantStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[tenantStatusRequest](w, r)
	if !ok {
		return
	}
	if req.Status == "" {
		writeError(w, domain.E(domain.KindValidation, "status is required"))
		return
	}

	t, err := h.tenants.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
