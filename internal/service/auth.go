// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	crmotel "github.com/lachgar03/crm-project/internal/adapter/otel"
	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
	"github.com/lachgar03/crm-project/internal/tenantctx"
)

// AuthService handles login, token refresh, and principal loading.
// Login is scoped to the tenant bound in ctx; refresh re-binds the
// tenant from the token's own claim.
type AuthService struct {
	store      database.Store
	tokens     *TokenService
	bcryptCost int
	metrics    *crmotel.Metrics
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, tokens *TokenService, bcryptCost int) *AuthService {
	return &AuthService{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// SetMetrics attaches metric instruments. Optional; counters are
// skipped when unset.
func (s *AuthService) SetMetrics(m *crmotel.Metrics) {
	s.metrics = m
}

// recordLogin bumps the login counters when instruments are attached.
func (s *AuthService) recordLogin(ctx context.Context, ok bool, reason string) {
	if s.metrics == nil {
		return
	}
	if ok {
		s.metrics.LoginsSucceeded.Add(ctx, 1)
		return
	}
	s.metrics.LoginsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// HashPassword produces a bcrypt hash at the configured cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "hash password", err)
	}
	return string(hash), nil
}

// Login authenticates a user within the ambient tenant and issues a
// token pair. The invalid-credentials error is identical whether the
// email is unknown or the password is wrong.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// An unbound tenant here is a client that sent no tenant headers and
	// an unresolvable Host, not an integration defect.
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, domain.E(domain.KindValidation,
			"tenant could not be determined; set X-Tenant-ID or X-Tenant-Subdomain")
	}

	ctx, span := crmotel.StartLoginSpan(ctx, tenantID)
	defer span.End()

	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindTenantNotFound, "tenant not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "load tenant", err)
	}
	if !t.Active() {
		s.recordLogin(ctx, false, "tenant_disabled")
		return nil, domain.E(domain.KindTenantDisabled, "tenant account is disabled")
	}

	u, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.recordLogin(ctx, false, "credentials")
			return nil, domain.E(domain.KindInvalidCredentials, "invalid email or password")
		}
		return nil, domain.Wrap(domain.KindInternal, "load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.recordLogin(ctx, false, "credentials")
		return nil, domain.E(domain.KindInvalidCredentials, "invalid email or password")
	}

	if !u.Enabled {
		s.recordLogin(ctx, false, "account_disabled")
		return nil, domain.E(domain.KindAccountDisabled, "user account is disabled")
	}

	u.TenantName = t.Name
	u.TenantStatus = t.Status
	u.Roles, err = s.store.GetUserRoles(ctx, u.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load roles", err)
	}

	resp, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}

	s.recordLogin(ctx, true, "")
	slog.Info("user logged in", "user_id", u.ID, "tenant_id", u.TenantID)
	return resp, nil
}

// Refresh redeems a refresh token for a new token pair. The consumed
// token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*user.AuthResponse, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	// The token's tenant claim is authoritative for this operation.
	ctx = tenantctx.WithTenant(ctx, claims.TenantID)

	rec, err := s.store.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, domain.E(domain.KindInvalidToken, "refresh token is not recognized")
	}
	if !rec.Valid(s.now()) || rec.UserID != userID {
		return nil, domain.E(domain.KindInvalidToken, "refresh token is no longer valid")
	}

	u, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.store.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "revoke refresh token", err)
	}

	resp, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TokensRefreshed.Add(ctx, 1)
	}
	return resp, nil
}

// Logout revokes every refresh token held by the ambient principal.
func (s *AuthService) Logout(ctx context.Context) error {
	u, ok := tenantctx.Principal(ctx)
	if !ok {
		return domain.E(domain.KindInvalidToken, "no authenticated principal")
	}
	if err := s.store.RevokeUserRefreshTokens(ctx, u.ID); err != nil {
		return domain.Wrap(domain.KindInternal, "revoke refresh tokens", err)
	}
	slog.Info("user logged out", "user_id", u.ID, "tenant_id", u.TenantID)
	return nil
}

// AdminResetPassword replaces a user's password and revokes all of the
// user's refresh tokens. Operator use only; no old-password check.
func (s *AuthService) AdminResetPassword(ctx context.Context, email, newPassword string) error {
	if len(newPassword) < 8 {
		return domain.E(domain.KindValidation, "password must be at least 8 characters")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetUserPassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.store.RevokeUserRefreshTokens(ctx, u.ID); err != nil {
		return domain.Wrap(domain.KindInternal, "revoke refresh tokens", err)
	}

	slog.Info("password reset", "user_id", u.ID, "tenant_id", u.TenantID)
	return nil
}

// Principal loads the full principal for the given user ID: user row,
// roles with permissions, and the owning tenant's name and status.
// Disabled users and non-active tenants are rejected here so every
// caller enforces the same gates.
func (s *AuthService) Principal(ctx context.Context, userID int64) (*user.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindInvalidToken, "user no longer exists")
		}
		return nil, domain.Wrap(domain.KindInternal, "load user", err)
	}
	if !u.Enabled {
		return nil, domain.E(domain.KindAccountDisabled, "user account is disabled")
	}

	t, err := s.store.GetTenant(ctx, u.TenantID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load tenant", err)
	}
	if !t.Active() {
		return nil, domain.E(domain.KindTenantDisabled, "tenant account is disabled")
	}

	u.TenantName = t.Name
	u.TenantStatus = t.Status
	u.Roles, err = s.store.GetUserRoles(ctx, u.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load roles", err)
	}
	return u, nil
}

// issuePair signs an access and refresh token for the principal and
// persists the refresh token record.
func (s *AuthService) issuePair(ctx context.Context, u *user.User) (*user.AuthResponse, error) {
	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return nil, err
	}

	refresh, jti, expiresAt, err := s.tokens.IssueRefresh(u)
	if err != nil {
		return nil, err
	}

	rec := user.RefreshToken{
		JTI:       jti,
		UserID:    u.ID,
		TenantID:  u.TenantID,
		ExpiresAt: expiresAt,
	}
	if err := s.store.StoreRefreshToken(ctx, rec); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "store refresh token", err)
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.Add(ctx, 1)
	}

	return &user.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		TenantID:     u.TenantID,
		TenantName:   u.TenantName,
		Username:     u.Email,
		Roles:        u.RoleNames(),
	}, nil
}
