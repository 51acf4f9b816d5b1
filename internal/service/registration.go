package service

import (
	"context"
	"encoding/json"
	"log/slog"

	crmotel "github.com/lachgar03/crm-project/internal/adapter/otel"
	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/role"
	"github.com/lachgar03/crm-project/internal/domain/tenant"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/port/messagequeue"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// RegistrationService provisions tenants together with their first admin
// user. Provisioning is atomic at the store level: a failure anywhere
// leaves neither the tenant nor the user behind.
type RegistrationService struct {
	store database.Store
	auth  *AuthService
	queue messagequeue.Queue
}

// NewRegistrationService creates a new registration service. queue may be
// nil; lifecycle events are then skipped.
func NewRegistrationService(store database.Store, auth *AuthService, queue messagequeue.Queue) *RegistrationService {
	return &RegistrationService{store: store, auth: auth, queue: queue}
}

// Register validates and provisions a new tenant with its admin user,
// then logs the admin in and returns the token pair.
//
// The reserved "admin" subdomain is the master tenant: its admin gets
// the SUPER_ADMIN role. Every other tenant's first user gets ADMIN.
func (s *RegistrationService) Register(ctx context.Context, req tenant.RegistrationRequest) (*user.AuthResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := crmotel.StartRegistrationSpan(ctx, req.Subdomain)
	defer span.End()

	hash, err := s.auth.HashPassword(req.AdminPassword)
	if err != nil {
		return nil, err
	}

	roleName := role.Admin
	if req.Subdomain == tenant.MasterSubdomain {
		roleName = role.SuperAdmin
	}

	t, admin, err := s.store.RegisterTenant(ctx, req, hash, roleName)
	if err != nil {
		return nil, err
	}

	slog.Info("tenant registered",
		"tenant_id", t.ID, "subdomain", t.Subdomain, "admin_user_id", admin.ID)
	s.announce(ctx, t)

	// Log the admin in within the new tenant's scope.
	var resp *user.AuthResponse
	err = tenantctx.RunWithTenant(ctx, t.ID, func(ctx context.Context) error {
		var loginErr error
		resp, loginErr = s.auth.Login(ctx, user.LoginRequest{
			Email:    req.AdminEmail,
			Password: req.AdminPassword,
		})
		return loginErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// EnsureMasterTenant provisions the master tenant at startup if it does
// not exist yet. Safe to call on every boot.
func (s *RegistrationService) EnsureMasterTenant(ctx context.Context, adminEmail, adminPassword, firstName, lastName string) error {
	if _, err := s.store.GetTenantBySubdomain(ctx, tenant.MasterSubdomain); err == nil {
		return nil
	}
	if adminPassword == "" {
		return domain.E(domain.KindValidation, "bootstrap admin password is not configured")
	}

	hash, err := s.auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	req := tenant.RegistrationRequest{
		CompanyName:    "Platform Administration",
		Subdomain:      tenant.MasterSubdomain,
		Plan:           "ENTERPRISE",
		AdminEmail:     adminEmail,
		AdminFirstName: firstName,
		AdminLastName:  lastName,
	}
	t, admin, err := s.store.RegisterTenant(ctx, req, hash, role.SuperAdmin)
	if err != nil {
		return err
	}

	slog.Info("master tenant bootstrapped", "tenant_id", t.ID, "admin_user_id", admin.ID)
	s.announce(ctx, t)
	return nil
}

// announce publishes the tenant-registered lifecycle event.
func (s *RegistrationService) announce(ctx context.Context, t *tenant.Tenant) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTenantRegistered, payload); err != nil {
		slog.Warn("tenant lifecycle publish failed", "tenant_id", t.ID, "error", err)
	}
}
