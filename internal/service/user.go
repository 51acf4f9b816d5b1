package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/user"
	"github.com/lachgar03/crm-project/internal/port/database"
)

// UserService manages users within the ambient tenant.
type UserService struct {
	store   database.Store
	auth    *AuthService
	evictor *Evictor
}

// NewUserService creates a new user service. evictor may be nil in tests.
func NewUserService(store database.Store, auth *AuthService, evictor *Evictor) *UserService {
	return &UserService{store: store, auth: auth, evictor: evictor}
}

// Create adds a user to the ambient tenant.
func (s *UserService) Create(ctx context.Context, req user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.store.CreateUser(ctx, req, hash)
	if err != nil {
		return nil, err
	}
	slog.Info("user created", "user_id", u.ID, "tenant_id", u.TenantID)
	return u, nil
}

// Get returns a user in the ambient tenant with roles populated.
func (s *UserService) Get(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "user not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "load user", err)
	}
	u.Roles, err = s.store.GetUserRoles(ctx, u.ID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load roles", err)
	}
	return u, nil
}

// List returns every user in the ambient tenant.
func (s *UserService) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Update applies partial changes to a user. Role and enablement changes
// invalidate the user's cached permissions; disabling additionally
// revokes all refresh tokens so existing sessions cannot renew.
func (s *UserService) Update(ctx context.Context, id int64, req user.UpdateRequest) (*user.User, error) {
	u, err := s.store.UpdateUser(ctx, id, req)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.KindNotFound, "user not found")
		}
		return nil, domain.Wrap(domain.KindInternal, "update user", err)
	}

	if req.Enabled != nil && !*req.Enabled {
		if err := s.store.RevokeUserRefreshTokens(ctx, id); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "revoke refresh tokens", err)
		}
	}

	if s.evictor != nil && (req.RoleIDs != nil || req.Enabled != nil) {
		if err := s.evictor.EvictUser(ctx, id); err != nil {
			slog.Warn("user eviction failed", "user_id", id, "error", err)
		}
	}
	return u, nil
}

// Delete removes a user from the ambient tenant. Role grants and
// refresh tokens are dropped with the row.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.E(domain.KindNotFound, "user not found")
		}
		return domain.Wrap(domain.KindInternal, "delete user", err)
	}
	if s.evictor != nil {
		if err := s.evictor.EvictUser(ctx, id); err != nil {
			slog.Warn("user eviction failed", "user_id", id, "error", err)
		}
	}
	slog.Info("user deleted", "user_id", id)
	return nil
}

// AssignRoles replaces a user's role set.
func (s *UserService) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	for _, rid := range roleIDs {
		if _, err := s.store.GetRole(ctx, rid); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Ef(domain.KindNotFound, "role %d does not exist", rid)
			}
			return domain.Wrap(domain.KindInternal, "load role", err)
		}
	}

	if err := s.store.AssignUserRoles(ctx, userID, roleIDs); err != nil {
		return domain.Wrap(domain.KindInternal, "assign roles", err)
	}
	if s.evictor != nil {
		if err := s.evictor.EvictUser(ctx, userID); err != nil {
			slog.Warn("user eviction failed", "user_id", userID, "error", err)
		}
	}
	return nil
}
