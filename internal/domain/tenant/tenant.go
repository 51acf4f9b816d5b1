// Package tenant defines the tenant entity and registration rules.
package tenant

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/lachgar03/crm-project/internal/domain"
)

// Tenant statuses. Only ACTIVE tenants may authenticate.
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
)

// MasterSubdomain is the subdomain of the master tenant. Its first user
// receives the super-admin role during registration.
const MasterSubdomain = "admin"

// Tenant is an isolated customer organization. All business data is
// partitioned by tenant id.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Status    string    `json:"status"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether tokens scoped to this tenant may authenticate.
func (t *Tenant) Active() bool {
	return t.Status == StatusActive
}

// RegistrationRequest creates a tenant together with its first admin user.
type RegistrationRequest struct {
	CompanyName    string `json:"company_name"`
	Subdomain      string `json:"subdomain"`
	Plan           string `json:"plan"`
	AdminEmail     string `json:"admin_email"`
	AdminPassword  string `json:"admin_password"`
	AdminFirstName string `json:"admin_first_name"`
	AdminLastName  string `json:"admin_last_name"`
}

// UpdateRequest modifies mutable tenant fields. Nil means "leave unchanged".
type UpdateRequest struct {
	Name   string  `json:"name"`
	Status *string `json:"status"`
	Plan   string  `json:"plan"`
}

// reservedSubdomains can never be registered as tenants.
var reservedSubdomains = []string{
	"api", "www", "app", "test", "staging", "prod", "production",
	"dev", "demo", "mail", "ftp", "cdn", "static", "assets",
}

var subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidateSubdomain checks format and the reserved-word denylist.
// The master subdomain is allowed; only bootstrap may actually register it.
func ValidateSubdomain(subdomain string) error {
	s := strings.ToLower(strings.TrimSpace(subdomain))
	if s == "" {
		return domain.E(domain.KindValidation, "subdomain must not be empty")
	}
	if len(s) < 3 || len(s) > 63 {
		return domain.E(domain.KindValidation, "subdomain must be between 3 and 63 characters")
	}
	if !subdomainRegex.MatchString(s) {
		return domain.E(domain.KindValidation,
			"subdomain may only contain lowercase letters, digits, and inner hyphens")
	}
	if slices.Contains(reservedSubdomains, s) {
		return domain.Ef(domain.KindValidation, "subdomain %q is reserved", s)
	}
	return nil
}

// Validate checks the full registration request before any write happens.
func (r *RegistrationRequest) Validate() error {
	if err := ValidateSubdomain(r.Subdomain); err != nil {
		return err
	}
	if r.CompanyName == "" {
		return domain.E(domain.KindValidation, "company name is required")
	}
	if r.AdminEmail == "" || !strings.Contains(r.AdminEmail, "@") {
		return domain.E(domain.KindValidation, "a valid admin email is required")
	}
	if len(r.AdminPassword) < 8 {
		return domain.E(domain.KindValidation, "admin password must be at least 8 characters")
	}
	return nil
}

// Normalize lowercases subdomain and email in place.
func (r *RegistrationRequest) Normalize() {
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
	r.AdminEmail = strings.ToLower(strings.TrimSpace(r.AdminEmail))
	if r.Plan == "" {
		r.Plan = "FREE"
	}
}
