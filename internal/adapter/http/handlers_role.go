package http

import (
	"net/http"

	"github.com/lachgar03/crm-project/internal/domain/role"
)

// ListRoles returns the system roles plus the ambient tenant's custom roles.
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

// CreateRole creates a custom role, optionally with an initial
// permission set.
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[role.CreateRequest](w, r)
	if !ok {
		return
	}

	created, err := h.roles.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRole returns one role with permissions populated.
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	got, err := h.roles.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

// UpdateRole renames or re-describes a custom role.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[role.UpdateRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.roles.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteRole removes a custom role and evicts its holders' cached
// permissions.
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

// AssignRolePermissions replaces a custom role's permission set.
func (h *Handlers) AssignRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	req, ok := readJSON[assignPermissionsRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.roles.AssignPermissions(r.Context(), id, req.PermissionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ListPermissions returns the global permission catalog.
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.perms.ListCatalog(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}
