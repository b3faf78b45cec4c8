package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's tenant-wide role
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleEditor            Role = "editor"
	RoleViewer            Role = "viewer"
	RoleIncidentCommander Role = "incident_commander"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer, RoleIncidentCommander:
		return true
	}
	return false
}

// Provider identifies how a user authenticates
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderOkta  Provider = "okta"
	ProviderSAML  Provider = "saml"
	ProviderOIDC  Provider = "oidc"
)

// User is an account within a tenant. Users are soft-deleted only.
type User struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash *string    `json:"-"`
	Role         Role       `json:"role"`
	AuthProvider Provider   `json:"auth_provider"`
	ExternalID   *string    `json:"external_id"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	PersonID     *uuid.UUID `json:"person_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CreatedBy    *uuid.UUID `json:"created_by"`
	UpdatedBy    *uuid.UUID `json:"updated_by"`
	DeletedAt    *time.Time `json:"-"`
}

// RefreshToken is a persisted session. Only the hash of the raw token is
// stored.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UserAgent *string
	IPAddress *string
}

// IsValid reports whether the token is neither revoked nor expired at now
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenResponse is returned by every successful authentication
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// SSOIdentity is the verified identity asserted by an external IdP
type SSOIdentity struct {
	TenantID    uuid.UUID
	Email       string
	DisplayName string
	ExternalID  string
	Provider    Provider
}
