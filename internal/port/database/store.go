// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
)

// Store is the port interface for database operations.
//
// Operations on users and roles are scoped to the tenant bound in ctx;
// implementations must fail with a context-not-bound error when no tenant
// is bound rather than fall through to an unscoped query. Tenant
// operations themselves are unscoped.
type Store interface {
	// Tenants
	GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenant(ctx context.Context, id int64, req tenant.UpdateRequest) (*tenant.Tenant, error)
	SetTenantStatus(ctx context.Context, id int64, status string) error

	// RegisterTenant creates the tenant and its admin user in a single
	// transaction. No partial state survives a failure. The admin user is
	// granted the named role, which must be a system role.
	RegisterTenant(ctx context.Context, req tenant.RegistrationRequest, passwordHash, roleName string) (*tenant.Tenant, *user.User, error)

	// Users (tenant-scoped)
	CreateUser(ctx context.Context, req user.CreateRequest, passwordHash string) (*user.User, error)
	GetUser(ctx context.Context, id int64) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	UpdateUser(ctx context.Context, id int64, req user.UpdateRequest) (*user.User, error)
	SetUserPassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error

	// GetUserRoles returns the user's roles with permissions populated.
	GetUserRoles(ctx context.Context, userID int64) ([]role.Role, error)
	AssignUserRoles(ctx context.Context, userID int64, roleIDs []int64) error

	// Roles (tenant-scoped)
	CreateRole(ctx context.Context, req role.CreateRequest) (*role.Role, error)
	GetRole(ctx context.Context, id int64) (*role.Role, error)
	GetRoleByName(ctx context.Context, name string) (*role.Role, error)
	ListRoles(ctx context.Context) ([]role.Role, error)
	UpdateRole(ctx context.Context, id int64, req role.UpdateRequest) (*role.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	// ListRoleUsers returns the IDs of users holding the role, for
	// transitive cache invalidation after a role changes.
	ListRoleUsers(ctx context.Context, roleID int64) ([]int64, error)

	// Permissions (global catalog, read-only at runtime)
	ListPermissions(ctx context.Context) ([]role.Permission, error)
	GetPermissionsByIDs(ctx context.Context, ids []int64) ([]role.Permission, error)

	// Refresh tokens
	StoreRefreshToken(ctx context.Context, rec user.RefreshToken) error
	GetRefreshToken(ctx context.Context, jti string) (*user.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, jti string) error
	RevokeUserRefreshTokens(ctx context.Context, userID int64) error

	// Ping reports backend reachability for readiness checks.
	Ping(ctx context.Context) error
}
