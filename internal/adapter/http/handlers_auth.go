package http

import (
	"net/http"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// Register creates a tenant together with its first admin user and
// returns the admin's token pair.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.RegistrationRequest](w, r)
	if !ok {
		return
	}

	resp, err := h.registration.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login authenticates email and password against the ambient tenant.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r)
	if !ok {
		return
	}

	resp, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a new token pair. The tenant
// comes from the token itself, not from the request's resolution.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[refreshRequest](w, r)
	if !ok {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, domain.E(domain.KindValidation, "refresh_token is required"))
		return
	}

	resp, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes all of the caller's refresh tokens.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated principal.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := tenantctx.Principal(r.Context())
	if !ok {
		writeError(w, domain.E(domain.KindInvalidToken, "authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}
