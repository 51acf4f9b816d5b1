// Package role defines global roles and their resource:action permissions.
package role

import (
	"strings"

	"github.com/lachgar03/crm-project/internal/domain"
)

// System role names seeded by migrations. System roles cannot be renamed,
// deleted, or have their permission set rewritten through the management API.
const (
	SuperAdmin = "SUPER_ADMIN"
	Admin      = "ADMIN"
)

// Permission is an atomic (resource, action) capability grant. Identity is
// the pair, compared case-insensitively at evaluation time.
type Permission struct {
	ID       int64  `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Name returns the canonical "resource:action" form.
func (p Permission) Name() string {
	return strings.ToLower(p.Resource) + ":" + strings.ToLower(p.Action)
}

// Matches reports whether this permission grants (resource, action),
// ignoring case.
func (p Permission) Matches(resource, action string) bool {
	return strings.EqualFold(p.Resource, resource) && strings.EqualFold(p.Action, action)
}

// Role is a globally defined, named bundle of permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	System      bool         `json:"is_system_role"`
	Permissions []Permission `json:"permissions"`
}

// CreateRequest creates a non-system role.
type CreateRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	PermissionIDs []int64 `json:"permission_ids"`
}

// Validate rejects empty or system-colliding names before any write.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.E(domain.KindValidation, "role name is required")
	}
	return nil
}

// UpdateRequest renames or re-describes a non-system role.
type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EffectivePermissions returns the union of permissions across roles,
// de-duplicated by case-insensitive (resource, action) identity.
func EffectivePermissions(roles []Role) []Permission {
	seen := make(map[string]bool)
	var out []Permission
	for _, r := range roles {
		for _, p := range r.Permissions {
			key := p.Name()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}
