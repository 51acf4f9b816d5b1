package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lachgar03/crm-project/internal/domain/user"
)

const userColumns = `id, tenant_id, first_name, last_name, email, password_hash, enabled, created_at, updated_at`

// userDest returns the scan destinations matching userColumns.
func userDest(u *user.User) []any {
	return []any{
		&u.ID, &u.TenantID, &u.FirstName, &u.LastName,
		&u.Email, &u.PasswordHash, &u.Enabled, &u.CreatedAt, &u.UpdatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, req user.CreateRequest, passwordHash string) (*user.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u user.User
	err = tx.QueryRow(ctx,
		`INSERT INTO users (tenant_id, first_name, last_name, email, password_hash, enabled)
		 VALUES ($1, $2, $3, $4, $5, true)
		 RETURNING `+userColumns,
		tid, req.FirstName, req.LastName, strings.ToLower(req.Email), passwordHash,
	).Scan(userDest(&u)...)
	if err != nil {
		return nil, uniqueViolation(err, fmt.Sprintf("email %q is already registered", req.Email))
	}

	if len(req.RoleIDs) > 0 {
		if err := replaceUserRoles(ctx, tx, u.ID, req.RoleIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*user.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	var u user.User
	err = s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`,
		id, tid,
	).Scan(userDest(&u)...)
	if err != nil {
		return nil, notFoundWrap(err, "get user %d", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	var u user.User
	err = s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND tenant_id = $2`,
		strings.ToLower(email), tid,
	).Scan(userDest(&u)...)
	if err != nil {
		return nil, notFoundWrap(err, "get user by email")
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at ASC`,
		tid)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(userDest(&u)...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, id int64, req user.UpdateRequest) (*user.User, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var u user.User
	err = tx.QueryRow(ctx,
		`UPDATE users
		 SET first_name = COALESCE(NULLIF($3, ''), first_name),
		     last_name  = COALESCE(NULLIF($4, ''), last_name),
		     enabled    = COALESCE($5, enabled),
		     updated_at = now()
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+userColumns,
		id, tid, req.FirstName, req.LastName, req.Enabled,
	).Scan(userDest(&u)...)
	if err != nil {
		return nil, notFoundWrap(err, "update user %d", id)
	}

	if req.RoleIDs != nil {
		if err := replaceUserRoles(ctx, tx, u.ID, req.RoleIDs); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update user: %w", err)
	}
	return &u, nil
}

func (s *Store) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $3, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		id, tid, passwordHash)
	return execExpectOne(tag, err, "set password for user %d", id)
}

// DeleteUser removes a user row; role grants and refresh tokens go with
// it via ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM users WHERE id = $1 AND tenant_id = $2`,
		id, tid)
	return execExpectOne(tag, err, "delete user %d", id)
}

func (s *Store) AssignUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Confirm the user belongs to the ambient tenant before touching
	// its grants.
	var exists int64
	if err := tx.QueryRow(ctx,
		`SELECT id FROM users WHERE id = $1 AND tenant_id = $2`, userID, tid,
	).Scan(&exists); err != nil {
		return notFoundWrap(err, "assign roles to user %d", userID)
	}

	if err := replaceUserRoles(ctx, tx, userID, roleIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func replaceUserRoles(ctx context.Context, tx pgx.Tx, userID int64, roleIDs []int64) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear user %d roles: %w", userID, err)
	}
	for _, roleID := range roleIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			userID, roleID); err != nil {
			return fmt.Errorf("grant role %d to user %d: %w", roleID, userID, err)
		}
	}
	return nil
}
