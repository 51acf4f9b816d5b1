package service

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lachgar03/crm-project/internal/config"
	"github.com/lachgar03/crm-project/internal/domain"
	"github.com/lachgar03/crm-project/internal/domain/user"
)

// Token type claim values. Refresh tokens are never accepted where an
// access token is required, and vice versa.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT claim set issued by this service. The subject is the
// user ID; tid binds the token to its tenant.
type Claims struct {
	TenantID  int64    `json:"tid"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim as a numeric user ID.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.E(domain.KindInvalidToken, "token subject is not a valid user id")
	}
	return id, nil
}

// TokenService signs and validates HMAC-SHA256 JWTs.
type TokenService struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService builds a token service from auth configuration.
func NewTokenService(cfg config.Auth) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, domain.E(domain.KindInternal, "jwt secret is not configured")
	}
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTokenExpiry,
		refreshTTL: cfg.RefreshTokenExpiry,
		now:        time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssueAccess signs a short-lived access token for the principal.
// The token carries the tenant ID and role names current at issue time.
func (s *TokenService) IssueAccess(u *user.User) (string, error) {
	return s.sign(u, tokenTypeAccess, s.accessTTL, u.RoleNames())
}

// IssueRefresh signs a refresh token and returns it with its JTI and
// expiry so the caller can persist the server-side record.
func (s *TokenService) IssueRefresh(u *user.User) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = s.now().Add(s.refreshTTL)
	token, err = s.signWithID(u, tokenTypeRefresh, jti, expiresAt, nil)
	return token, jti, expiresAt, err
}

func (s *TokenService) sign(u *user.User, typ string, ttl time.Duration, roles []string) (string, error) {
	return s.signWithID(u, typ, uuid.NewString(), s.now().Add(ttl), roles)
}

func (s *TokenService) signWithID(u *user.User, typ, jti string, expiresAt time.Time, roles []string) (string, error) {
	now := s.now()
	claims := Claims{
		TenantID:  u.TenantID,
		Roles:     roles,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "sign token", err)
	}
	return signed, nil
}

// ParseAccess validates an access token and returns its claims.
func (s *TokenService) ParseAccess(token string) (*Claims, error) {
	return s.parse(token, tokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its claims.
func (s *TokenService) ParseRefresh(token string) (*Claims, error) {
	return s.parse(token, tokenTypeRefresh)
}

func (s *TokenService) parse(token, wantType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalidToken, "invalid token", err)
	}
	if claims.TokenType != wantType {
		return nil, domain.Ef(domain.KindInvalidToken, "token type %q cannot be used as %s token", claims.TokenType, wantType)
	}
	if claims.TenantID <= 0 {
		return nil, domain.E(domain.KindInvalidToken, "token is missing its tenant claim")
	}
	return claims, nil
}
