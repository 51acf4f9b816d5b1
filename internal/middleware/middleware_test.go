package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// stubStore implements just the Store methods the middleware path
// touches; anything else panics via the embedded nil interface.
type stubStore struct {
	database.Store

	tenants map[int64]*tenant.Tenant
	users   map[int64]*user.User
	roles   map[int64][]role.Role
}

func newStubStore() *stubStore {
	return &stubStore{
		tenants: make(map[int64]*tenant.Tenant),
		users:   make(map[int64]*user.User),
		roles:   make(map[int64][]role.Role),
	}
}

func (s *stubStore) addTenant(id int64, subdomain, status string) *tenant.Tenant {
	t := &tenant.Tenant{ID: id, Name: subdomain, Subdomain: subdomain, Status: status}
	s.tenants[id] = t
	return t
}

func (s *stubStore) addUser(id, tenantID int64, roles ...role.Role) *user.User {
	u := &user.User{ID: id, TenantID: tenantID, Email: "u@t.test", Enabled: true}
	s.users[id] = u
	s.roles[id] = roles
	return u
}

func (s *stubStore) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	if t, ok := s.tenants[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) GetTenantBySubdomain(_ context.Context, subdomain string) (*tenant.Tenant, error) {
	for _, t := range s.tenants {
		if t.Subdomain == subdomain {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) GetUser(ctx context.Context, id int64) (*user.User, error) {
	tid, err := tenantctx.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if u, ok := s.users[id]; ok && u.TenantID == tid {
		copied := *u
		return &copied, nil
	}
	return nil, domain.ErrNotFound
}

func (s *stubStore) GetUserRoles(_ context.Context, userID int64) ([]role.Role, error) {
	return s.roles[userID], nil
}

// stubCache is a minimal in-memory cache port implementation.
type stubCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string][]byte)}
}

func (c *stubCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *stubCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *stubCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}
