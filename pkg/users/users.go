package users

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/catalog"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// ResetQueuedMessage is returned when a password reset has been requested
const ResetQueuedMessage = "Password reset email queued"

// UserCreate is the admin payload for a new local account
type UserCreate struct {
	Email       string    `json:"email" validate:"required,email,max=255"`
	DisplayName string    `json:"display_name" validate:"required,min=1,max=255"`
	Password    string    `json:"password" validate:"required,min=8"`
	Role        auth.Role `json:"role" validate:"omitempty,oneof=admin editor viewer incident_commander"`
	IsActive    *bool     `json:"is_active"`
}

// UserUpdate changes a user's role, status or display name
type UserUpdate struct {
	DisplayName *string    `json:"display_name" validate:"omitempty,min=1,max=255"`
	Role        *auth.Role `json:"role" validate:"omitempty,oneof=admin editor viewer incident_commander"`
	IsActive    *bool      `json:"is_active"`
}

func (in UserUpdate) values() catalog.Values {
	v := catalog.Values{}
	if in.DisplayName != nil {
		v["display_name"] = *in.DisplayName
	}
	if in.Role != nil {
		v["role"] = string(*in.Role)
	}
	if in.IsActive != nil {
		v["is_active"] = *in.IsActive
	}
	return v
}

func userColumns() []string {
	return strings.FieldsFunc(auth.UserColumns, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// Definition maps auth.User onto the catalog repository
func Definition() *catalog.Definition[auth.User] {
	return &catalog.Definition[auth.User]{
		Kind:         audit.KindUser,
		Table:        "users",
		Columns:      userColumns(),
		Mutable:      []string{"email", "display_name", "password_hash", "role", "auth_provider", "is_active"},
		Filterable:   []string{"role", "is_active", "auth_provider"},
		Sortable:     []string{"email", "display_name", "role", "last_login_at", "updated_at"},
		SearchColumn: "email",
		UniqueField:  "email",
		Scan:         auth.ScanUser,
		ID:           func(u *auth.User) uuid.UUID { return u.ID },
		Snapshot: func(u *auth.User) map[string]interface{} {
			return map[string]interface{}{
				"email":        u.Email,
				"role":         string(u.Role),
				"is_active":    u.IsActive,
				"display_name": u.DisplayName,
			}
		},
	}
}

// Service administers the users of a tenant
type Service struct {
	*catalog.CachedService[auth.User]
	sessions *auth.Store
	now      func() time.Time
}

// NewService creates the user admin service. cache and metrics may be nil.
func NewService(db storage.DB, cache storage.Cache, auditWriter *audit.Writer, metrics *observability.Metrics, ttl time.Duration) *Service {
	return &Service{
		CachedService: catalog.NewCachedService(db, Definition(), cache, auditWriter, metrics, ttl),
		sessions:      auth.NewStore(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create provisions a local account with a bcrypt-hashed password
func (s *Service) Create(ctx context.Context, tenantID, actorID uuid.UUID, in UserCreate) (*auth.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = auth.RoleViewer
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.CachedService.Create(ctx, tenantID, actorID, catalog.Values{
		"email":         strings.ToLower(strings.TrimSpace(in.Email)),
		"display_name":  in.DisplayName,
		"password_hash": hash,
		"role":          string(role),
		"auth_provider": string(auth.ProviderLocal),
		"is_active":     active,
	})
}

// Update applies in. Deactivating a user also revokes their sessions.
func (s *Service) Update(ctx context.Context, tenantID, id, actorID uuid.UUID, in UserUpdate) (*auth.User, error) {
	var updated *auth.User
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *catalog.Repository[auth.User]) error {
		before, err := repo.GetOr404(ctx, tenantID, id)
		if err != nil {
			return err
		}
		snapshot := repo.Definition().Snapshot
		beforeSnapshot := snapshot(before)
		if updated, err = repo.Update(ctx, tenantID, id, in.values(), &actorID); err != nil {
			return err
		}
		if before.IsActive && !updated.IsActive {
			if _, err := s.sessions.RevokeAllForUser(ctx, tx, id, s.now()); err != nil {
				return err
			}
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(audit.KindUser, audit.ActionUpdated),
			id, beforeSnapshot, snapshot(updated))
	})
	if err != nil {
		return nil, err
	}
	s.AuditCommitted(audit.MutationEvent(audit.KindUser, audit.ActionUpdated))
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":  id.String(),
		"actor_id": actorID.String(),
	}).Info("user updated")
	return updated, nil
}

// Delete soft-deletes a user and revokes their sessions. Admins cannot
// delete themselves.
func (s *Service) Delete(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	if id == actorID {
		return apperrors.BadRequest("Cannot delete yourself")
	}
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *catalog.Repository[auth.User]) error {
		before, err := repo.GetOr404(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, tenantID, id, &actorID); err != nil {
			return err
		}
		if _, err := s.sessions.RevokeAllForUser(ctx, tx, id, s.now()); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.MutationEvent(audit.KindUser, audit.ActionDeleted),
			id, map[string]interface{}{"email": before.Email, "role": string(before.Role)}, nil)
	})
	if err != nil {
		return err
	}
	s.AuditCommitted(audit.MutationEvent(audit.KindUser, audit.ActionDeleted))
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"user_id":  id.String(),
		"actor_id": actorID.String(),
	}).Info("user deleted")
	return nil
}

// RequestPasswordReset records that a reset was requested for a live user.
// Delivery of the reset email is not part of this service.
func (s *Service) RequestPasswordReset(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	err := storage.WithTx(ctx, s.DB(), func(tx *sql.Tx) error {
		if _, err := s.Repository().WithTx(tx).GetOr404(ctx, tenantID, id); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.EventPasswordResetRequested, id, nil, nil)
	})
	if err != nil {
		return err
	}
	s.AuditCommitted(audit.EventPasswordResetRequested)
	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"target_user_id": id.String(),
		"actor_id":       actorID.String(),
	}).Info("password reset requested")
	return nil
}
