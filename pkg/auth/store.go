package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/storage"
)

// UserColumns is the column list matched by ScanUser
const UserColumns = `id, tenant_id, email, display_name, password_hash, role, auth_provider,
	external_id, is_active, last_login_at, person_id,
	created_at, updated_at, created_by, updated_by, deleted_at`

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked_at, created_at, user_agent, ip_address`

// ScanUser reads one row selected with UserColumns
func ScanUser(row storage.RowScanner) (*User, error) {
	u := &User{}
	var role, provider string
	err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &provider,
		&u.ExternalID, &u.IsActive, &u.LastLoginAt, &u.PersonID,
		&u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy, &u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.AuthProvider = Provider(provider)
	return u, nil
}

// Store holds the user and refresh-token queries used during
// authentication. Every method takes the querier so callers choose whether
// it runs inside a transaction.
type Store struct{}

// NewStore creates a new auth store
func NewStore() *Store {
	return &Store{}
}

func (s *Store) queryUser(ctx context.Context, q storage.DBTX, query string, args ...interface{}) (*User, error) {
	user, err := ScanUser(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// FindLoginUser finds a live user by email. Without a tenant the
// earliest-created match wins.
func (s *Store) FindLoginUser(ctx context.Context, q storage.DBTX, email string, tenantID *uuid.UUID) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if tenantID != nil {
		return s.queryUser(ctx, q,
			"SELECT "+UserColumns+" FROM users WHERE email = $1 AND tenant_id = $2 AND deleted_at IS NULL",
			email, *tenantID)
	}
	return s.queryUser(ctx, q,
		"SELECT "+UserColumns+" FROM users WHERE email = $1 AND deleted_at IS NULL ORDER BY created_at ASC LIMIT 1",
		email)
}

// GetUser loads a live user by id
func (s *Store) GetUser(ctx context.Context, q storage.DBTX, id uuid.UUID) (*User, error) {
	return s.queryUser(ctx, q,
		"SELECT "+UserColumns+" FROM users WHERE id = $1 AND deleted_at IS NULL", id)
}

// FindByExternalID matches an SSO subject within a tenant and provider
func (s *Store) FindByExternalID(ctx context.Context, q storage.DBTX, tenantID uuid.UUID, provider Provider, externalID string) (*User, error) {
	return s.queryUser(ctx, q,
		"SELECT "+UserColumns+" FROM users WHERE tenant_id = $1 AND auth_provider = $2 AND external_id = $3 AND deleted_at IS NULL",
		tenantID, string(provider), externalID)
}

// FindByEmail matches a live user by email within a tenant
func (s *Store) FindByEmail(ctx context.Context, q storage.DBTX, tenantID uuid.UUID, email string) (*User, error) {
	return s.queryUser(ctx, q,
		"SELECT "+UserColumns+" FROM users WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL",
		tenantID, strings.ToLower(email))
}

// CreateUser inserts u and fills in the generated columns
func (s *Store) CreateUser(ctx context.Context, q storage.DBTX, u *User) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (tenant_id, email, display_name, password_hash, role, auth_provider, external_id, is_active, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		u.TenantID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash, string(u.Role),
		string(u.AuthProvider), u.ExternalID, u.IsActive, u.LastLoginAt,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateSSOProfile overwrites the IdP-owned fields and last_login_at
func (s *Store) UpdateSSOProfile(ctx context.Context, q storage.DBTX, u *User) error {
	_, err := q.ExecContext(ctx, `
		UPDATE users SET display_name = $2, external_id = $3, auth_provider = $4, last_login_at = $5, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.DisplayName, u.ExternalID, string(u.AuthProvider), u.LastLoginAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update sso profile: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login
func (s *Store) TouchLastLogin(ctx context.Context, q storage.DBTX, userID uuid.UUID, at time.Time) error {
	if _, err := q.ExecContext(ctx, "UPDATE users SET last_login_at = $2 WHERE id = $1", userID, at); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token hash
func (s *Store) CreateRefreshToken(ctx context.Context, q storage.DBTX, t *RefreshToken) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		t.UserID, t.TokenHash, t.ExpiresAt, t.UserAgent, t.IPAddress,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken looks a token up by hash
func (s *Store) GetRefreshToken(ctx context.Context, q storage.DBTX, tokenHash string) (*RefreshToken, error) {
	t := &RefreshToken{}
	err := q.QueryRowContext(ctx,
		"SELECT "+refreshTokenColumns+" FROM refresh_tokens WHERE token_hash = $1", tokenHash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt, &t.UserAgent, &t.IPAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	return t, nil
}

// RevokeRefreshToken revokes a live token. It reports false when the token
// was already revoked, which is how concurrent rotations are detected.
func (s *Store) RevokeRefreshToken(ctx context.Context, q storage.DBTX, id uuid.UUID, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL", id, at)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every live token of a user
func (s *Store) RevokeAllForUser(ctx context.Context, q storage.DBTX, userID uuid.UUID, at time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL", userID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
