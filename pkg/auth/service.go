package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/contextkeys"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Messages returned to clients
const (
	MsgInvalidCredentials   = "Invalid credentials"
	MsgAccountDeactivated   = "Account is deactivated"
	MsgInvalidRefreshToken  = "Invalid refresh token"
	MsgRefreshNotRecognised = "Refresh token not recognised"
	MsgRefreshReuse         = "Refresh token reuse detected; all sessions revoked"
	MsgRefreshExpired       = "Refresh token expired"
	MsgUserUnavailable      = "User not found or inactive"
)

// FailureLimiter throttles repeated login failures per identifier
type FailureLimiter interface {
	Check(ctx context.Context, identifier string) error
	RecordFailure(ctx context.Context, identifier string)
	Clear(ctx context.Context, identifier string)
}

var errTokenRaced = errors.New("refresh token already rotated")

// Service implements local login, token rotation, logout and SSO user
// provisioning.
type Service struct {
	db      storage.DB
	store   *Store
	tokens  *TokenManager
	limiter FailureLimiter
	audit   *audit.Writer
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates the auth service. limiter and metrics may be nil.
func NewService(db storage.DB, tokens *TokenManager, limiter FailureLimiter, auditWriter *audit.Writer, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		store:   NewStore(),
		tokens:  tokens,
		limiter: limiter,
		audit:   auditWriter,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Tokens exposes the token manager used to sign and verify tokens
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Login authenticates a local user by email and password
func (s *Service) Login(ctx context.Context, email, password string, tenantID *uuid.UUID) (*TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email); err != nil {
			s.metrics.LoginAttempt(string(ProviderLocal), "rate_limited")
			return nil, err
		}
	}

	user, err := s.store.FindLoginUser(ctx, s.db, email, tenantID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil || !VerifyPassword(password, *user.PasswordHash) {
		if s.limiter != nil {
			s.limiter.RecordFailure(ctx, email)
		}
		s.metrics.LoginAttempt(string(ProviderLocal), "failure")
		observability.FromContext(ctx).WithField("email", email).Info("login failed")
		return nil, apperrors.Unauthenticated(MsgInvalidCredentials)
	}
	if !user.IsActive {
		s.metrics.LoginAttempt(string(ProviderLocal), "inactive")
		return nil, apperrors.Unauthenticated(MsgAccountDeactivated)
	}
	if s.limiter != nil {
		s.limiter.Clear(ctx, email)
	}

	var resp *TokenResponse
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if err := s.store.TouchLastLogin(ctx, tx, user.ID, now); err != nil {
			return err
		}
		user.LastLoginAt = &now
		var err error
		if resp, err = s.CreateTokenResponse(ctx, tx, user); err != nil {
			return err
		}
		return s.audit.LogLogin(ctx, tx, user.TenantID, user.ID, string(ProviderLocal))
	})
	if err != nil {
		return nil, err
	}
	s.audit.Committed(audit.EventLogin)
	s.metrics.LoginAttempt(string(ProviderLocal), "success")
	return resp, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// rotated revokes every session of its user.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenResponse, error) {
	logger := observability.FromContext(ctx)
	claims, err := s.tokens.VerifyToken(raw, TokenTypeRefresh)
	if err != nil {
		s.metrics.TokenRefresh("invalid")
		return nil, &apperrors.Error{Kind: apperrors.KindUnauthenticated, Detail: MsgInvalidRefreshToken, Err: err}
	}

	stored, err := s.store.GetRefreshToken(ctx, s.db, HashToken(raw))
	if err != nil {
		return nil, err
	}
	if stored == nil {
		s.metrics.TokenRefresh("unknown")
		return nil, apperrors.Unauthenticated(MsgRefreshNotRecognised)
	}
	if stored.RevokedAt != nil {
		return nil, s.handleReuse(ctx, stored.UserID)
	}
	now := s.now()
	if !stored.IsValid(now) {
		s.metrics.TokenRefresh("expired")
		return nil, apperrors.Unauthenticated(MsgRefreshExpired)
	}

	var resp *TokenResponse
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		revoked, err := s.store.RevokeRefreshToken(ctx, tx, stored.ID, now)
		if err != nil {
			return err
		}
		if !revoked {
			return errTokenRaced
		}
		user, err := s.store.GetUser(ctx, tx, stored.UserID)
		if err != nil {
			return err
		}
		if user == nil || !user.IsActive {
			return apperrors.Unauthenticated(MsgUserUnavailable)
		}
		resp, err = s.CreateTokenResponse(ctx, tx, user)
		return err
	})
	if errors.Is(err, errTokenRaced) {
		return nil, s.handleReuse(ctx, stored.UserID)
	}
	if err != nil {
		s.metrics.TokenRefresh("failure")
		return nil, err
	}
	logger.WithField("user_id", claims.Subject).Debug("refresh token rotated")
	s.metrics.TokenRefresh("success")
	return resp, nil
}

func (s *Service) handleReuse(ctx context.Context, userID uuid.UUID) error {
	s.metrics.TokenRefresh("reuse")
	n, err := s.store.RevokeAllForUser(ctx, s.db, userID, s.now())
	if err != nil {
		return err
	}
	observability.FromContext(ctx).WithField("user_id", userID.String()).
		Warnf("refresh token reuse detected; revoked %d sessions", n)
	return apperrors.Unauthenticated(MsgRefreshReuse)
}

// Logout revokes the refresh token if it is known and live. Unknown or
// already revoked tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	stored, err := s.store.GetRefreshToken(ctx, s.db, HashToken(raw))
	if err != nil {
		return err
	}
	if stored == nil || stored.RevokedAt != nil {
		return nil
	}
	var logged bool
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		revoked, err := s.store.RevokeRefreshToken(ctx, tx, stored.ID, s.now())
		if err != nil || !revoked {
			return err
		}
		user, err := s.store.GetUser(ctx, tx, stored.UserID)
		if err != nil || user == nil {
			return err
		}
		logged = true
		return s.audit.LogLogout(ctx, tx, user.TenantID, user.ID)
	})
	if err != nil {
		return err
	}
	if logged {
		s.audit.Committed(audit.EventLogout)
	}
	return nil
}

// CurrentUser resolves the user behind a verified access token
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*User, error) {
	if claims.Subject == "" {
		return nil, apperrors.Unauthenticated("Invalid token: missing subject claim")
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Unauthenticated("User not found")
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("User account is deactivated")
	}
	return user, nil
}

// GetOrCreateSSOUser matches an IdP identity to a user, provisioning a viewer
// on first sight. It runs on q so the caller controls the transaction.
func (s *Service) GetOrCreateSSOUser(ctx context.Context, q storage.DBTX, id SSOIdentity) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, apperrors.BadRequest("SSO identity has no email")
	}
	now := s.now()

	user, err := s.store.FindByExternalID(ctx, q, id.TenantID, id.Provider, id.ExternalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.store.FindByEmail(ctx, q, id.TenantID, email); err != nil {
			return nil, err
		}
	}

	if user == nil {
		externalID := id.ExternalID
		user = &User{
			TenantID:     id.TenantID,
			Email:        email,
			DisplayName:  id.DisplayName,
			Role:         RoleViewer,
			AuthProvider: id.Provider,
			ExternalID:   &externalID,
			IsActive:     true,
			LastLoginAt:  &now,
		}
		if err := s.store.CreateUser(ctx, q, user); err != nil {
			return nil, err
		}
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"user_id":  user.ID.String(),
			"provider": string(id.Provider),
		}).Info("provisioned sso user")
		return user, nil
	}

	externalID := id.ExternalID
	user.DisplayName = id.DisplayName
	user.ExternalID = &externalID
	user.AuthProvider = id.Provider
	user.LastLoginAt = &now
	if err := s.store.UpdateSSOProfile(ctx, q, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CompleteSSOLogin provisions the user and issues tokens in one transaction
func (s *Service) CompleteSSOLogin(ctx context.Context, id SSOIdentity) (*TokenResponse, error) {
	var resp *TokenResponse
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		user, err := s.GetOrCreateSSOUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return apperrors.Unauthenticated(MsgAccountDeactivated)
		}
		if resp, err = s.CreateTokenResponse(ctx, tx, user); err != nil {
			return err
		}
		return s.audit.LogLogin(ctx, tx, user.TenantID, user.ID, string(id.Provider))
	})
	if err != nil {
		s.metrics.LoginAttempt(string(id.Provider), "failure")
		return nil, err
	}
	s.audit.Committed(audit.EventLogin)
	s.metrics.LoginAttempt(string(id.Provider), "success")
	return resp, nil
}

// CreateTokenResponse issues an access/refresh pair and persists the refresh
// token hash with the caller's client details.
func (s *Service) CreateTokenResponse(ctx context.Context, q storage.DBTX, user *User) (*TokenResponse, error) {
	access, err := s.tokens.CreateAccessToken(AccessClaims{
		Subject:  user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Email:    user.Email,
	}, s.tokens.AccessTTL())
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.CreateRefreshToken(user.ID, s.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}

	info := contextkeys.GetClientInfo(ctx)
	record := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
		UserAgent: optional(info.UserAgent),
		IPAddress: optional(info.IPAddress),
	}
	if err := s.store.CreateRefreshToken(ctx, q, record); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL() / time.Second),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
