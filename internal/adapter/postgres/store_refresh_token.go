package postgres

import (
	"context"
	"fmt"

	"github.com/lachgar03/crm-project/internal/domain/user"
)

func (s *Store) StoreRefreshToken(ctx context.Context, rec user.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (jti, user_id, tenant_id, expires_at, revoked)
		VALUES ($1, $2, $3, $4, false)`,
		rec.JTI, rec.UserID, rec.TenantID, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, jti string) (*user.RefreshToken, error) {
	var rec user.RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT jti, user_id, tenant_id, expires_at, revoked, created_at
		FROM refresh_tokens WHERE jti = $1`, jti,
	).Scan(&rec.JTI, &rec.UserID, &rec.TenantID, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get refresh token")
	}
	return &rec, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, jti string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE jti = $1 AND NOT revoked`,
		jti)
	return execExpectOne(tag, err, "revoke refresh token")
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`,
		userID)
	if err != nil {
		return fmt.Errorf("revoke user %d refresh tokens: %w", userID, err)
	}
	return nil
}

// PurgeExpiredRefreshTokens deletes rows past their expiry. Run
// periodically; revocation checks do not depend on it.
func (s *Store) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
