package auth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/apperrors"
)

// TokenType separates access tokens from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Default lifetimes
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

const invalidCredentials = "Could not validate credentials"

// Claims is the JWT payload. Refresh tokens carry only the registered claims
// and the type.
type Claims struct {
	jwt.RegisteredClaims
	Type     TokenType `json:"type"`
	TenantID string    `json:"tenant_id,omitempty"`
	Role     Role      `json:"role,omitempty"`
	Email    string    `json:"email,omitempty"`
}

// AccessClaims are the custom claims embedded in access tokens
type AccessClaims struct {
	Subject  uuid.UUID
	TenantID uuid.UUID
	Role     Role
	Email    string
}

// TokenManager signs and verifies RS256 tokens
type TokenManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager parses PEM encoded keys. Zero TTLs fall back to the
// defaults.
func NewTokenManager(privatePEM, publicPEM string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key from PEM: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key from PEM: %w", err)
	}
	return NewTokenManagerFromKeys(privateKey, publicKey, accessTTL, refreshTTL), nil
}

// NewTokenManagerFromKeys builds a manager from parsed keys
func NewTokenManagerFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL returns the access token lifetime
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the refresh token lifetime
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// CreateAccessToken signs an access token for the given claims
func (m *TokenManager) CreateAccessToken(c AccessClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.accessTTL
	}
	return m.sign(Claims{
		RegisteredClaims: m.registered(c.Subject.String(), ttl),
		Type:             TokenTypeAccess,
		TenantID:         c.TenantID.String(),
		Role:             c.Role,
		Email:            c.Email,
	})
}

// CreateRefreshToken signs a refresh token carrying only the subject
func (m *TokenManager) CreateRefreshToken(subject uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.refreshTTL
	}
	return m.sign(Claims{
		RegisteredClaims: m.registered(subject.String(), ttl),
		Type:             TokenTypeRefresh,
	})
}

// VerifyToken checks the signature, expiry and type. Every failure is an
// unauthenticated error.
func (m *TokenManager) VerifyToken(raw string, expected TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, &apperrors.Error{Kind: apperrors.KindUnauthenticated, Detail: invalidCredentials, Err: err}
	}

	if claims.Type != expected {
		return nil, apperrors.Unauthenticated(fmt.Sprintf("Invalid token type: expected %s", expected))
	}
	if claims.Subject == "" {
		return nil, apperrors.Unauthenticated("Invalid token: missing subject claim")
	}
	return claims, nil
}

// UserID parses the subject claim
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, apperrors.Unauthenticated("Invalid token: malformed subject claim")
	}
	return id, nil
}

// Tenant parses the tenant_id claim
func (c *Claims) Tenant() (uuid.UUID, bool) {
	id, err := uuid.Parse(c.TenantID)
	return id, err == nil
}

func (m *TokenManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
