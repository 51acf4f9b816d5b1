package service

import (
	"context"
	"strings"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is an in-memory implementation of database.Store for testing.
// Tenant-scoped methods honor the ctx binding the way the real store does.
type mockStore struct {
	tenants     []tenant.Tenant
	users       []user.User
	roles       []role.Role
	roleTenants map[int64]int64 // roleID -> owning tenant (0 for system roles)
	permissions []role.Permission
	userRoles   map[int64][]int64 // userID -> roleIDs
	refresh     map[string]user.RefreshToken
	nextID      int64

	// Error hooks — set these to inject failures.
	getTenantErr    error
	getUserErr      error
	getUserRolesErr error
	registerErr     error
	storeRefreshErr error
	setRolePermsErr error
	listRoleUsersErr error
}

func newMockStore() *mockStore {
	m := &mockStore{
		roleTenants: make(map[int64]int64),
		userRoles:   make(map[int64][]int64),
		refresh:     make(map[string]user.RefreshToken),
	}
	// System roles and a small permission catalog, as seeded by migrations.
	m.roles = []role.Role{
		{ID: m.id(), Name: role.SuperAdmin, Description: "Platform administrator", System: true},
		{ID: m.id(), Name: role.Admin, Description: "Tenant administrator", System: true},
	}
	for _, p := range []struct{ resource, action string }{
		{"customers", "read"}, {"customers", "create"}, {"customers", "update"}, {"customers", "delete"},
		{"users", "read"}, {"users", "create"}, {"users", "update"},
		{"roles", "read"}, {"roles", "create"}, {"roles", "update"}, {"roles", "delete"},
		{"tenants", "read"}, {"tenants", "update"},
	} {
		m.permissions = append(m.permissions, role.Permission{ID: m.id(), Resource: p.resource, Action: p.action})
	}
	return m
}

func (m *mockStore) id() int64 {
	m.nextID++
	return m.nextID
}

// seedTenant adds an active tenant and returns it.
func (m *mockStore) seedTenant(name, subdomain string) *tenant.Tenant {
	t := tenant.Tenant{
		ID:        m.id(),
		Name:      name,
		Subdomain: subdomain,
		Status:    tenant.StatusActive,
		Plan:      "FREE",
		CreatedAt: time.Now(),
	}
	m.tenants = append(m.tenants, t)
	return &m.tenants[len(m.tenants)-1]
}

// seedUser adds an enabled user with the given role names.
func (m *mockStore) seedUser(tenantID int64, email, passwordHash string, roleNames ...string) *user.User {
	u := user.User{
		ID:           m.id(),
		Email:        email,
		PasswordHash: passwordHash,
		TenantID:     tenantID,
		Enabled:      true,
	}
	m.users = append(m.users, u)
	for _, name := range roleNames {
		for _, r := range m.roles {
			if strings.EqualFold(r.Name, name) {
				m.userRoles[u.ID] = append(m.userRoles[u.ID], r.ID)
			}
		}
	}
	return &m.users[len(m.users)-1]
}

// findPermission returns the seeded permission for the resource/action pair.
func (m *mockStore) findPermission(resource, action string) role.Permission {
	for _, p := range m.permissions {
		if p.Resource == resource && p.Action == action {
			return p
		}
	}
	return role.Permission{}
}

// Tenants

func (m *mockStore) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	if m.getTenantErr != nil {
		return nil, m.getTenantErr
	}
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			return &m.tenants[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	if m.getTenantErr != nil {
		return nil, m.getTenantErr
	}
	for i := range m.tenants {
		if m.tenants[i].Subdomain == subdomain {
			return &m.tenants[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	return m.tenants, nil
}

func (m *mockStore) UpdateTenant(_ context.Context, id int64, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			if req.Name != "" {
				m.tenants[i].Name = req.Name
			}
			if req.Plan != "" {
				m.tenants[i].Plan = req.Plan
			}
			if req.Status != nil {
				m.tenants[i].Status = *req.Status
			}
			m.tenants[i].UpdatedAt = time.Now()
			return &m.tenants[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) SetTenantStatus(_ context.Context, id int64, status string) error {
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			m.tenants[i].Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) RegisterTenant(_ context.Context, req tenant.RegistrationRequest, passwordHash, roleName string) (*tenant.Tenant, *user.User, error) {
	if m.registerErr != nil {
		return nil, nil, m.registerErr
	}
	for _, t := range m.tenants {
		if t.Subdomain == req.Subdomain {
			return nil, nil, domain.E(domain.KindAlreadyExists, "subdomain is already taken")
		}
	}
	t := m.seedTenant(req.CompanyName, req.Subdomain)
	t.Plan = req.Plan
	u := m.seedUser(t.ID, req.AdminEmail, passwordHash, roleName)
	u.FirstName = req.AdminFirstName
	u.LastName = req.AdminLastName
	return t, u, nil
}

// Users

func (m *mockStore) CreateUser(ctx context.Context, req user.CreateRequest, passwordHash string) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.TenantID == tid && strings.EqualFold(u.Email, req.Email) {
			return nil, domain.E(domain.KindAlreadyExists, "email is already registered")
		}
	}
	u := m.seedUser(tid, req.Email, passwordHash)
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	m.userRoles[u.ID] = append([]int64(nil), req.RoleIDs...)
	return u, nil
}

func (m *mockStore) GetUser(ctx context.Context, id int64) (*user.User, error) {
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].TenantID == tid {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.users {
		if m.users[i].TenantID == tid && strings.EqualFold(m.users[i].Email, email) {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListUsers(ctx context.Context) ([]user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	var out []user.User
	for _, u := range m.users {
		if u.TenantID == tid {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateUser(ctx context.Context, id int64, req user.UpdateRequest) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].TenantID == tid {
			if req.FirstName != "" {
				m.users[i].FirstName = req.FirstName
			}
			if req.LastName != "" {
				m.users[i].LastName = req.LastName
			}
			if req.Enabled != nil {
				m.users[i].Enabled = *req.Enabled
			}
			if req.RoleIDs != nil {
				m.userRoles[id] = append([]int64(nil), req.RoleIDs...)
			}
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return err
	}
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].TenantID == tid {
			m.users[i].PasswordHash = passwordHash
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeleteUser(ctx context.Context, id int64) error {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return err
	}
	for i := range m.users {
		if m.users[i].ID == id && m.users[i].TenantID == tid {
			m.users = append(m.users[:i], m.users[i+1:]...)
			delete(m.userRoles, id)
			for jti, rec := range m.refresh {
				if rec.UserID == id {
					delete(m.refresh, jti)
				}
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) GetUserRoles(_ context.Context, userID int64) ([]role.Role, error) {
	if m.getUserRolesErr != nil {
		return nil, m.getUserRolesErr
	}
	var out []role.Role
	for _, rid := range m.userRoles[userID] {
		for _, r := range m.roles {
			if r.ID == rid {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *mockStore) AssignUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	m.userRoles[userID] = append([]int64(nil), roleIDs...)
	return nil
}

// Roles

func (m *mockStore) CreateRole(ctx context.Context, req role.CreateRequest) (*role.Role, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range m.roles {
		if strings.EqualFold(r.Name, req.Name) && (r.System || m.roleTenants[r.ID] == tid) {
			return nil, domain.E(domain.KindAlreadyExists, "role name is already taken")
		}
	}
	r := role.Role{ID: m.id(), Name: req.Name, Description: req.Description}
	m.roles = append(m.roles, r)
	m.roleTenants[r.ID] = tid
	return &r, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (*role.Role, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.roles {
		if m.roles[i].ID == id && (m.roles[i].System || m.roleTenants[id] == tid) {
			r := m.roles[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range m.roles {
		if strings.EqualFold(m.roles[i].Name, name) && (m.roles[i].System || m.roleTenants[m.roles[i].ID] == tid) {
			r := m.roles[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListRoles(ctx context.Context) ([]role.Role, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	var out []role.Role
	for _, r := range m.roles {
		if r.System || m.roleTenants[r.ID] == tid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateRole(ctx context.Context, id int64, req role.UpdateRequest) (*role.Role, error) {
	for i := range m.roles {
		if m.roles[i].ID == id {
			if req.Name != "" {
				m.roles[i].Name = req.Name
			}
			if req.Description != "" {
				m.roles[i].Description = req.Description
			}
			r := m.roles[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) DeleteRole(_ context.Context, id int64) error {
	for i := range m.roles {
		if m.roles[i].ID == id {
			m.roles = append(m.roles[:i], m.roles[i+1:]...)
			delete(m.roleTenants, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) SetRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	if m.setRolePermsErr != nil {
		return m.setRolePermsErr
	}
	for i := range m.roles {
		if m.roles[i].ID == roleID {
			var perms []role.Permission
			for _, pid := range permissionIDs {
				for _, p := range m.permissions {
					if p.ID == pid {
						perms = append(perms, p)
					}
				}
			}
			m.roles[i].Permissions = perms
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) ListRoleUsers(ctx context.Context, roleID int64) ([]int64, error) {
	if _, err := tenantctx.RequireTenantID(ctx); err != nil {
		return nil, err
	}
	if m.listRoleUsersErr != nil {
		return nil, m.listRoleUsersErr
	}
	var out []int64
	for uid, rids := range m.userRoles {
		for _, rid := range rids {
			if rid == roleID {
				out = append(out, uid)
			}
		}
	}
	return out, nil
}

// Permissions

func (m *mockStore) ListPermissions(_ context.Context) ([]role.Permission, error) {
	return m.permissions, nil
}

func (m *mockStore) GetPermissionsByIDs(_ context.Context, ids []int64) ([]role.Permission, error) {
	var out []role.Permission
	for _, id := range ids {
		for _, p := range m.permissions {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// Refresh tokens

func (m *mockStore) StoreRefreshToken(_ context.Context, rec user.RefreshToken) error {
	if m.storeRefreshErr != nil {
		return m.storeRefreshErr
	}
	m.refresh[rec.JTI] = rec
	return nil
}

func (m *mockStore) GetRefreshToken(_ context.Context, jti string) (*user.RefreshToken, error) {
	rec, ok := m.refresh[jti]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *mockStore) RevokeRefreshToken(_ context.Context, jti string) error {
	rec, ok := m.refresh[jti]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Revoked = true
	m.refresh[jti] = rec
	return nil
}

func (m *mockStore) RevokeUserRefreshTokens(_ context.Context, userID int64) error {
	for jti, rec := range m.refresh {
		if rec.UserID == userID {
			rec.Revoked = true
			m.refresh[jti] = rec
		}
	}
	return nil
}

func (m *mockStore) Ping(_ context.Context) error { return nil }
