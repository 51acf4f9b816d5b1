package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/lachgar03/crm-project/internal/domain/role"
)

const roleColumns = `id, name, description, is_system`

func scanRole(row scannable) (role.Role, error) {
	var r role.Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.System)
	return r, err
}

// visibleRoles is the scope predicate for role reads: system roles are
// global, custom roles belong to the ambient tenant.
const visibleRoles = `(is_system OR tenant_id = $1)`

func (s *Store) CreateRole(ctx context.Context, req role.CreateRequest) (*role.Role, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO roles (tenant_id, name, description, is_system)
		 VALUES ($1, $2, $3, false)
		 RETURNING `+roleColumns,
		tid, strings.TrimSpace(req.Name), req.Description)

	r, err := scanRole(row)
	if err != nil {
		return nil, uniqueViolation(err, fmt.Sprintf("role %q already exists", req.Name))
	}
	return &r, nil
}

func (s *Store) GetRole(ctx context.Context, id int64) (*role.Role, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $2 AND `+visibleRoles,
		tid, id)

	r, err := scanRole(row)
	if err != nil {
		return nil, notFoundWrap(err, "get role %d", id)
	}
	if err := s.attachPermissions(ctx, []*role.Role{&r}); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE lower(name) = lower($2) AND `+visibleRoles,
		tid, name)

	r, err := scanRole(row)
	if err != nil {
		return nil, notFoundWrap(err, "get role %q", name)
	}
	if err := s.attachPermissions(ctx, []*role.Role{&r}); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]role.Role, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE `+visibleRoles+`
		 ORDER BY is_system DESC, name ASC`, tid)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []role.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*role.Role, len(roles))
	for i := range roles {
		refs[i] = &roles[i]
	}
	if err := s.attachPermissions(ctx, refs); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, id int64, req role.UpdateRequest) (*role.Role, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	// System roles are immutable; the predicate keeps them out of the
	// UPDATE entirely so the caller sees not-found rather than a
	// silently ignored write.
	row := s.pool.QueryRow(ctx,
		`UPDATE roles
		 SET name        = COALESCE(NULLIF($3, ''), name),
		     description = COALESCE(NULLIF($4, ''), description)
		 WHERE id = $2 AND tenant_id = $1 AND NOT is_system
		 RETURNING `+roleColumns,
		tid, id, strings.TrimSpace(req.Name), req.Description)

	r, err := scanRole(row)
	if err != nil {
		return nil, notFoundWrap(uniqueViolation(err, fmt.Sprintf("role %q already exists", req.Name)), "update role %d", id)
	}
	if err := s.attachPermissions(ctx, []*role.Role{&r}); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM roles WHERE id = $2 AND tenant_id = $1 AND NOT is_system`,
		tid, id)
	return execExpectOne(tag, err, "delete role %d", id)
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists int64
	if err := tx.QueryRow(ctx,
		`SELECT id FROM roles WHERE id = $2 AND tenant_id = $1 AND NOT is_system`,
		tid, roleID,
	).Scan(&exists); err != nil {
		return notFoundWrap(err, "set permissions on role %d", roleID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role %d permissions: %w", roleID, err)
	}
	for _, pid := range permissionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			roleID, pid); err != nil {
			return fmt.Errorf("grant permission %d to role %d: %w", pid, roleID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListRoleUsers(ctx context.Context, roleID int64) ([]int64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ur.user_id
		 FROM user_roles ur
		 JOIN users u ON u.id = ur.user_id
		 WHERE ur.role_id = $2 AND u.tenant_id = $1`,
		tid, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role %d users: %w", roleID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan role user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUserRoles returns the user's roles with permissions populated. The
// caller is expected to have already confirmed the user belongs to the
// ambient tenant.
func (s *Store) GetUserRoles(ctx context.Context, userID int64) ([]role.Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.is_system
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d roles: %w", userID, err)
	}
	defer rows.Close()

	var roles []role.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*role.Role, len(roles))
	for i := range roles {
		refs[i] = &roles[i]
	}
	if err := s.attachPermissions(ctx, refs); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) ListPermissions(ctx context.Context) ([]role.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, resource, action FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var perms []role.Permission
	for rows.Next() {
		var p role.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) GetPermissionsByIDs(ctx context.Context, ids []int64) ([]role.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, resource, action FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get permissions by ids: %w", err)
	}
	defer rows.Close()

	var perms []role.Permission
	for rows.Next() {
		var p role.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// attachPermissions loads the permission sets for the given roles in one
// query.
func (s *Store) attachPermissions(ctx context.Context, roles []*role.Role) error {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]int64, len(roles))
	byID := make(map[int64]*role.Role, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
		byID[r.ID] = r
	}

	rows, err := s.pool.Query(ctx,
		`SELECT rp.role_id, p.id, p.resource, p.action
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 WHERE rp.role_id = ANY($1)
		 ORDER BY p.resource, p.action`, ids)
	if err != nil {
		return fmt.Errorf("load role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int64
		var p role.Permission
		if err := rows.Scan(&roleID, &p.ID, &p.Resource, &p.Action); err != nil {
			return fmt.Errorf("scan role permission: %w", err)
		}
		if r, ok := byID[roleID]; ok {
			r.Permissions = append(r.Permissions, p)
		}
	}
	return rows.Err()
}
