package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/port/database"
)

// RoleService manages tenant roles and their permission grants.
// System roles (SUPER_ADMIN, ADMIN) are immutable.
type RoleService struct {
	store   database.Store
	evictor *Evictor
}

// NewRoleService creates a new role service. evictor may be nil in tests.
func NewRoleService(store database.Store, evictor *Evictor) *RoleService {
	return &RoleService{store: store, evictor: evictor}
}

// Create adds a custom role to the ambient tenant.
func (s *RoleService) Create(ctx context.Context, req role.CreateRequest) (*role.Role, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	r, err := s.store.CreateRole(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(req.PermissionIDs) > 0 {
		perms, err := s.store.GetPermissionsByIDs(ctx, req.PermissionIDs)
		if err != nil {
			return nil, domain.Wrap(domain.KindInternal, "load permissions", err)
		}
		if len(perms) != len(req.PermissionIDs) {
			return nil, domain.E(domain.KindNotFound, "one or more permissions do not exist")
		}
		if err := s.store.SetRolePermissions(ctx, r.ID, req.PermissionIDs); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "set role permissions", err)
		}
		r.Permissions = perms
	}

	slog.Info("role created", "role_id", r.ID, "name", r.Name)
	return r, nil
}

// Get returns a role visible to the ambient tenant.
func (s *RoleService) Get(ctx context.Context, id int64) (*role.Role, error) {
	r, err := s.store.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "role not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "load role", err)
	}
	return r, nil
}

// List returns the roles visible to the ambient tenant: its own custom
// roles plus the system roles.
func (s *RoleService) List(ctx context.Context) ([]role.Role, error) {
	return s.store.ListRoles(ctx)
}

// Update renames or re-describes a custom role and invalidates the
// cached permissions of every user holding it.
func (s *RoleService) Update(ctx context.Context, id int64, req role.UpdateRequest) (*role.Role, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.System {
		return nil, domain.Ef(domain.KindValidation, "system role %s cannot be modified", r.Name)
	}

	updated, err := s.store.UpdateRole(ctx, id, req)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "update role", err)
	}
	s.evictRole(ctx, id)
	return updated, nil
}

// Delete removes a custom role. Users holding it lose its permissions
// immediately via eviction.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.System {
		return domain.Ef(domain.KindValidation, "system role %s cannot be deleted", r.Name)
	}

	// Snapshot holders before the join rows disappear with the role.
	holders, err := s.store.ListRoleUsers(ctx, id)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "list role users", err)
	}

	if err := s.store.DeleteRole(ctx, id); err != nil {
		return domain.Wrap(domain.KindInternal, "delete role", err)
	}

	if s.evictor != nil {
		for _, uid := range holders {
			if err := s.evictor.EvictUser(ctx, uid); err != nil {
				slog.Warn("user eviction failed", "user_id", uid, "error", err)
			}
		}
	}
	slog.Info("role deleted", "role_id", id, "name", r.Name)
	return nil
}

// AssignPermissions replaces a role's permission grants. Every
// referenced permission must exist in the catalog.
func (s *RoleService) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) (*role.Role, error) {
	r, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if r.System {
		return nil, domain.Ef(domain.KindValidation, "system role %s cannot be modified", r.Name)
	}

	perms, err := s.store.GetPermissionsByIDs(ctx, permissionIDs)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load permissions", err)
	}
	if len(perms) != len(permissionIDs) {
		return nil, domain.E(domain.KindNotFound, "one or more permissions do not exist")
	}

	if err := s.store.SetRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "set role permissions", err)
	}
	s.evictRole(ctx, roleID)

	return s.Get(ctx, roleID)
}

func (s *RoleService) evictRole(ctx context.Context, roleID int64) {
	if s.evictor == nil {
		return
	}
	if err := s.evictor.EvictRole(ctx, roleID); err != nil {
		slog.Warn("role eviction failed", "role_id", roleID, "error", err)
	}
}
