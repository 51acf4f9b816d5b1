package http_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// fakeStore is an in-memory database.Store covering the paths the HTTP
// tests drive. Methods outside that surface come from the embedded nil
// interface and panic if reached.
type fakeStore struct {
	database.Store

	mu          sync.Mutex
	tenants     []tenant.Tenant
	users       []user.User
	roles       []role.Role
	roleTenants map[int64]int64
	permissions []role.Permission
	userRoles   map[int64][]int64
	rolePerms   map[int64][]int64
	refresh     map[string]user.RefreshToken
	nextID      int64
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		roleTenants: make(map[int64]int64),
		userRoles:   make(map[int64][]int64),
		rolePerms:   make(map[int64][]int64),
		refresh:     make(map[string]user.RefreshToken),
	}
	s.roles = []role.Role{
		{ID: s.id(), Name: role.SuperAdmin, System: true},
		{ID: s.id(), Name: role.Admin, System: true},
	}
	for _, resource := range []string{"customers", "users", "roles", "tenants"} {
		for _, action := range []string{"read", "create", "update", "delete"} {
			s.permissions = append(s.permissions, role.Permission{
				ID: s.id(), Resource: resource, Action: action,
			})
		}
	}
	// System roles carry the full catalog, as the migrations seed them.
	for _, r := range s.roles {
		for _, p := range s.permissions {
			s.rolePerms[r.ID] = append(s.rolePerms[r.ID], p.ID)
		}
	}
	return s
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) roleWithPerms(r role.Role) role.Role {
	r.Permissions = nil
	for _, pid := range s.rolePerms[r.ID] {
		for _, p := range s.permissions {
			if p.ID == pid {
				r.Permissions = append(r.Permissions, p)
			}
		}
	}
	return r
}

// --- Tenants ---

func (s *fakeStore) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tenants {
		if s.tenants[i].ID == id {
			t := s.tenants[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tenants {
		if strings.EqualFold(s.tenants[i].Subdomain, subdomain) {
			t := s.tenants[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tenant.Tenant(nil), s.tenants...), nil
}

func (s *fakeStore) UpdateTenant(_ context.Context, id int64, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tenants {
		if s.tenants[i].ID != id {
			continue
		}
		if req.Name != "" {
			s.tenants[i].Name = req.Name
		}
		if req.Plan != "" {
			s.tenants[i].Plan = req.Plan
		}
		if req.Status != nil {
			s.tenants[i].Status = *req.Status
		}
		s.tenants[i].UpdatedAt = time.Now()
		t := s.tenants[i]
		return &t, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) SetTenantStatus(ctx context.Context, id int64, status string) error {
	_, err := s.UpdateTenant(ctx, id, tenant.UpdateRequest{Status: &status})
	return err
}

func (s *fakeStore) RegisterTenant(_ context.Context, req tenant.RegistrationRequest, passwordHash, roleName string) (*tenant.Tenant, *user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tenants {
		if strings.EqualFold(s.tenants[i].Subdomain, req.Subdomain) {
			return nil, nil, domain.Ef(domain.KindAlreadyExists, "subdomain %q is already taken", req.Subdomain)
		}
	}

	t := tenant.Tenant{
		ID: s.id(), Name: req.CompanyName, Subdomain: req.Subdomain,
		Status: tenant.StatusActive, Plan: req.Plan,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.tenants = append(s.tenants, t)

	u := user.User{
		ID: s.id(), TenantID: t.ID, Email: req.AdminEmail,
		FirstName: req.AdminFirstName, LastName: req.AdminLastName,
		PasswordHash: passwordHash, Enabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.users = append(s.users, u)

	for _, r := range s.roles {
		if r.System && r.Name == roleName {
			s.userRoles[u.ID] = []int64{r.ID}
		}
	}
	return &t, &u, nil
}

// --- Users ---

func (s *fakeStore) CreateUser(ctx context.Context, req user.CreateRequest, passwordHash string) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].TenantID == tid && strings.EqualFold(s.users[i].Email, req.Email) {
			return nil, domain.Ef(domain.KindAlreadyExists, "email %q is already registered", req.Email)
		}
	}
	u := user.User{
		ID: s.id(), TenantID: tid, Email: strings.ToLower(req.Email),
		FirstName: req.FirstName, LastName: req.LastName,
		PasswordHash: passwordHash, Enabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.users = append(s.users, u)
	s.userRoles[u.ID] = append([]int64(nil), req.RoleIDs...)
	return &u, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id int64) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id && s.users[i].TenantID == tid {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].TenantID == tid && strings.EqualFold(s.users[i].Email, email) {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) ListUsers(ctx context.Context) ([]user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []user.User
	for i := range s.users {
		if s.users[i].TenantID == tid {
			out = append(out, s.users[i])
		}
	}
	return out, nil
}

func (s *fakeStore) GetUserRoles(_ context.Context, userID int64) ([]role.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []role.Role
	for _, rid := range s.userRoles[userID] {
		for _, r := range s.roles {
			if r.ID == rid {
				out = append(out, s.roleWithPerms(r))
			}
		}
	}
	return out, nil
}

// --- Roles and permissions ---

func (s *fakeStore) CreateRole(ctx context.Context, req role.CreateRequest) (*role.Role, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := role.Role{ID: s.id(), Name: strings.TrimSpace(req.Name), Description: req.Description}
	s.roles = append(s.roles, r)
	s.roleTenants[r.ID] = tid
	return &r, nil
}

func (s *fakeStore) SetRolePermissions(_ context.Context, roleID int64, permissionIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rolePerms[roleID] = append([]int64(nil), permissionIDs...)
	return nil
}

func (s *fakeStore) GetPermissionsByIDs(_ context.Context, ids []int64) ([]role.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []role.Permission
	for _, id := range ids {
		for _, p := range s.permissions {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListPermissions(_ context.Context) ([]role.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]role.Permission(nil), s.permissions...), nil
}

// --- Refresh tokens ---

func (s *fakeStore) StoreRefreshToken(_ context.Context, rec user.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[rec.JTI] = rec
	return nil
}

func (s *fakeStore) GetRefreshToken(_ context.Context, jti string) (*user.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[jti]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *fakeStore) RevokeRefreshToken(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[jti]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Revoked = true
	s.refresh[jti] = rec
	return nil
}

func (s *fakeStore) RevokeUserRefreshTokens(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, rec := range s.refresh {
		if rec.UserID == userID {
			rec.Revoked = true
			s.refresh[jti] = rec
		}
	}
	return nil
}

func (s *fakeStore) Ping(context.Context) error {
	return nil
}

// memCache is a minimal cache.Cache for the handler tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}
