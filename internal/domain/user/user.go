// Package user defines the principal entity and auth request/response types.
package user

import (
	"strings"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
)

// User is the durable user record plus the transient per-request fields
// populated by principal loading. TenantName, TenantStatus, and Roles are
// never persisted on the user row; they come from tenant and role lookups
// and must not be trusted when absent.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TenantID     int64     `json:"tenant_id"`
	Enabled      bool      `json:"enabled"`
	RoleIDs      []int64   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Transient, populated per request by principal loading.
	TenantName   string      `json:"tenant_name,omitempty"`
	TenantStatus string      `json:"tenant_status,omitempty"`
	Roles        []role.Role `json:"roles,omitempty"`
}

// HasRole reports whether the principal holds the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the principal holds the super-admin role.
func (u *User) IsSuperAdmin() bool {
	return u.HasRole(role.SuperAdmin)
}

// RoleNames returns the names of the principal's roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// LoginRequest authenticates a user against its tenant.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate rejects structurally invalid login attempts.
func (r *LoginRequest) Validate() error {
	if r.Email == "" || r.Password == "" {
		return domain.E(domain.KindValidation, "email and password are required")
	}
	return nil
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	TenantID     int64    `json:"tenant_id"`
	TenantName   string   `json:"tenant_name,omitempty"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
}

// CreateRequest creates a user within the ambient tenant.
type CreateRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	RoleIDs   []int64 `json:"role_ids"`
}

// Validate checks required fields before hashing or writing anything.
func (r *CreateRequest) Validate() error {
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return domain.E(domain.KindValidation, "a valid email is required")
	}
	if len(r.Password) < 8 {
		return domain.E(domain.KindValidation, "password must be at least 8 characters")
	}
	return nil
}

// UpdateRequest modifies user fields. Nil pointers mean "leave unchanged".
type UpdateRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Enabled   *bool   `json:"enabled"`
	RoleIDs   []int64 `json:"role_ids"`
}

// RefreshToken is the server-side record of an issued refresh token.
// The JTI is the token's unique identifier claim; the token itself is
// never stored.
type RefreshToken struct {
	JTI       string    `json:"jti"`
	UserID    int64     `json:"user_id"`
	TenantID  int64     `json:"tenant_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the record can still be redeemed at the given time.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
