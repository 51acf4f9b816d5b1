package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
)

const tenantColumns = `id, name, subdomain, status, plan, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.Plan, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)

	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %d", id)
	}
	return &t, nil
}

func (s *Store) GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`,
		strings.ToLower(subdomain))

	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant by subdomain %q", subdomain)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) UpdateTenant(ctx context.Context, id int64, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tenants
		 SET name   = COALESCE(NULLIF($2, ''), name),
		     plan   = COALESCE(NULLIF($3, ''), plan),
		     status = COALESCE($4, status),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		id, req.Name, req.Plan, req.Status)

	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "update tenant %d", id)
	}
	return &t, nil
}

func (s *Store) SetTenantStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	return execExpectOne(tag, err, "set tenant %d status", id)
}

// RegisterTenant creates the tenant and its admin user in a single
// transaction and grants the admin the named system role. No partial
// state survives a failure.
func (s *Store) RegisterTenant(ctx context.Context, req tenant.RegistrationRequest, passwordHash, roleName string) (*tenant.Tenant, *user.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`INSERT INTO tenants (name, subdomain, status, plan)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+tenantColumns,
		req.CompanyName, req.Subdomain, tenant.StatusActive, req.Plan)

	t, err := scanTenant(row)
	if err != nil {
		return nil, nil, uniqueViolation(err, fmt.Sprintf("subdomain %q is already taken", req.Subdomain))
	}

	var u user.User
	err = tx.QueryRow(ctx,
		`INSERT INTO users (tenant_id, first_name, last_name, email, password_hash, enabled)
		 VALUES ($1, $2, $3, $4, $5, true)
		 RETURNING `+userColumns,
		t.ID, req.AdminFirstName, req.AdminLastName, req.AdminEmail, passwordHash,
	).Scan(userDest(&u)...)
	if err != nil {
		return nil, nil, uniqueViolation(err, fmt.Sprintf("email %q is already registered", req.AdminEmail))
	}

	var roleID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM roles WHERE name = $1 AND is_system`, roleName,
	).Scan(&roleID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, fmt.Errorf("system role %q is not seeded", roleName)
		}
		return nil, nil, fmt.Errorf("look up role %q: %w", roleName, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
		u.ID, roleID); err != nil {
		return nil, nil, fmt.Errorf("grant %s to admin: %w", roleName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit registration: %w", err)
	}
	return &t, &u, nil
}
