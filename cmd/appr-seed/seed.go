package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// SeedFile is the YAML document accepted by appr-seed
type SeedFile struct {
	Tenants []TenantSeed `yaml:"tenants" validate:"required,min=1,dive"`
}

// TenantSeed describes one tenant and its initial administrators
type TenantSeed struct {
	ID     *uuid.UUID  `yaml:"id"`
	Name   string      `yaml:"name" validate:"required,max=255"`
	Slug   string      `yaml:"slug" validate:"required,max=100"`
	Admins []AdminSeed `yaml:"admins" validate:"dive"`
}

// AdminSeed is a local admin account. PasswordEnv names an environment
// variable holding the password so secrets stay out of the file.
type AdminSeed struct {
	Email       string `yaml:"email" validate:"required,email"`
	DisplayName string `yaml:"display_name" validate:"required"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

func (a AdminSeed) password() (string, error) {
	password := a.Password
	if a.PasswordEnv != "" {
		password = os.Getenv(a.PasswordEnv)
	}
	if len(password) < 8 {
		return "", fmt.Errorf("admin %s: password must be at least 8 characters", a.Email)
	}
	return password, nil
}

// ParseSeedFile decodes and validates a seed document
func ParseSeedFile(data []byte) (*SeedFile, error) {
	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &file, nil
}

// Summary counts what a seed run changed
type Summary struct {
	Tenants        int
	AdminsCreated  int
	AdminsExisting int
}

// Seeder writes tenants and admins. Re-running a file is safe: tenants are
// upserted by slug and existing admins are left untouched.
type Seeder struct {
	db    storage.DB
	users *auth.Store
}

// NewSeeder creates a seeder
func NewSeeder(db storage.DB) *Seeder {
	return &Seeder{db: db, users: auth.NewStore()}
}

// Apply seeds every tenant of file in one transaction
func (s *Seeder) Apply(ctx context.Context, file *SeedFile) (*Summary, error) {
	logger := observability.FromContext(ctx)
	summary := &Summary{}

	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, tenant := range file.Tenants {
			tenantID, err := upsertTenant(ctx, tx, tenant)
			if err != nil {
				return err
			}
			summary.Tenants++

			for _, admin := range tenant.Admins {
				created, err := s.ensureAdmin(ctx, tx, tenantID, admin)
				if err != nil {
					return err
				}
				if created {
					summary.AdminsCreated++
				} else {
					summary.AdminsExisting++
				}
				logger.WithFields(map[string]interface{}{
					"tenant": tenant.Slug,
					"email":  admin.Email,
					"new":    created,
				}).Info("seeded admin")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func upsertTenant(ctx context.Context, q storage.DBTX, t TenantSeed) (uuid.UUID, error) {
	id := uuid.New()
	if t.ID != nil {
		id = *t.ID
	}
	var tenantID uuid.UUID
	err := q.QueryRowContext(ctx, `
		INSERT INTO tenants (id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id`,
		id, t.Name, t.Slug,
	).Scan(&tenantID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert tenant %s: %w", t.Slug, err)
	}
	return tenantID, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, q storage.DBTX, tenantID uuid.UUID, a AdminSeed) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(a.Email))
	existing, err := s.users.FindByEmail(ctx, q, tenantID, email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	password, err := a.password()
	if err != nil {
		return false, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = s.users.CreateUser(ctx, q, &auth.User{
		TenantID:     tenantID,
		Email:        email,
		DisplayName:  a.DisplayName,
		PasswordHash: &hash,
		Role:         auth.RoleAdmin,
		AuthProvider: auth.ProviderLocal,
		IsActive:     true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
