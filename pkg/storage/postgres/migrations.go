package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/appr/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

const auditColumns = `
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by UUID,
	updated_by UUID,
	deleted_at TIMESTAMPTZ`

// Migrations returns the schema history in order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE EXTENSION IF NOT EXISTS pgcrypto;

				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL UNIQUE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create teams and people tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					email VARCHAR(320),
					slack_channel VARCHAR(255),
					parent_team_id UUID REFERENCES teams(id) ON DELETE SET NULL,` + auditColumns + `,
					CONSTRAINT uq_teams_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_teams_tenant_id ON teams(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_teams_deleted_at ON teams(deleted_at);

				CREATE TABLE IF NOT EXISTS people (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					first_name VARCHAR(100) NOT NULL,
					last_name VARCHAR(100) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					email VARCHAR(320) NOT NULL,
					title VARCHAR(255),
					department VARCHAR(255),
					location VARCHAR(255),
					manager_id UUID REFERENCES people(id) ON DELETE SET NULL,
					team_id UUID REFERENCES teams(id) ON DELETE SET NULL,
					slack_user_id VARCHAR(50),
					github_username VARCHAR(100),
					external_hr_id VARCHAR(255),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,` + auditColumns + `,
					CONSTRAINT uq_people_tenant_email UNIQUE (tenant_id, email)
				);
				CREATE INDEX IF NOT EXISTS idx_people_tenant_id ON people(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_people_deleted_at ON people(deleted_at);
			`,
		},
		{
			Version:     3,
			Description: "Create users and refresh_tokens tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					email VARCHAR(320) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(255),
					role VARCHAR(50) NOT NULL DEFAULT 'viewer',
					auth_provider VARCHAR(50) NOT NULL DEFAULT 'local',
					external_id VARCHAR(255),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					last_login_at TIMESTAMPTZ,
					person_id UUID REFERENCES people(id) ON DELETE SET NULL,` + auditColumns + `,
					CONSTRAINT uq_users_tenant_email UNIQUE (tenant_id, email),
					CONSTRAINT uq_users_tenant_provider_external UNIQUE (tenant_id, auth_provider, external_id)
				);
				CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
				CREATE INDEX IF NOT EXISTS idx_users_deleted_at ON users(deleted_at);

				CREATE TABLE IF NOT EXISTS refresh_tokens (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					expires_at TIMESTAMPTZ NOT NULL,
					revoked_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					user_agent VARCHAR(512),
					ip_address VARCHAR(45)
				);
				CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create catalog tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS products (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					owner_team_id UUID REFERENCES teams(id) ON DELETE SET NULL,
					owner_person_id UUID REFERENCES people(id) ON DELETE SET NULL,
					tier INTEGER,
					tags JSONB NOT NULL DEFAULT '[]',
					external_id VARCHAR(255),` + auditColumns + `,
					CONSTRAINT uq_products_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_products_tenant_id ON products(tenant_id);

				CREATE TABLE IF NOT EXISTS services (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					service_type VARCHAR(50) NOT NULL DEFAULT 'api',
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					operational_status VARCHAR(50) NOT NULL DEFAULT 'operational',
					owner_team_id UUID REFERENCES teams(id) ON DELETE SET NULL,
					owner_person_id UUID REFERENCES people(id) ON DELETE SET NULL,
					tier INTEGER,
					pagerduty_service_id VARCHAR(255),
					datadog_service_name VARCHAR(255),
					runbook_url VARCHAR(2048),
					dashboard_url VARCHAR(2048),
					slo_target DOUBLE PRECISION,
					attributes JSONB NOT NULL DEFAULT '{}',
					tags JSONB NOT NULL DEFAULT '[]',
					external_id VARCHAR(255),` + auditColumns + `,
					CONSTRAINT uq_services_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_services_tenant_id ON services(tenant_id);

				CREATE TABLE IF NOT EXISTS components (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					component_type VARCHAR(50) NOT NULL DEFAULT 'library',
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					owner_team_id UUID REFERENCES teams(id) ON DELETE SET NULL,
					owner_person_id UUID REFERENCES people(id) ON DELETE SET NULL,
					language VARCHAR(100),
					version VARCHAR(100),
					package_name VARCHAR(255),
					attributes JSONB NOT NULL DEFAULT '{}',
					tags JSONB NOT NULL DEFAULT '[]',
					external_id VARCHAR(255),` + auditColumns + `,
					CONSTRAINT uq_components_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_components_tenant_id ON components(tenant_id);

				CREATE TABLE IF NOT EXISTS repositories (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					full_name VARCHAR(512) NOT NULL,
					description TEXT,
					provider VARCHAR(50) NOT NULL,
					clone_url VARCHAR(2048),
					html_url VARCHAR(2048),
					default_branch VARCHAR(255) NOT NULL DEFAULT 'main',
					is_private BOOLEAN NOT NULL DEFAULT TRUE,
					is_archived BOOLEAN NOT NULL DEFAULT FALSE,
					language VARCHAR(100),
					external_id VARCHAR(255),` + auditColumns + `,
					CONSTRAINT uq_repositories_tenant_full_name UNIQUE (tenant_id, full_name)
				);
				CREATE INDEX IF NOT EXISTS idx_repositories_tenant_id ON repositories(tenant_id);

				CREATE TABLE IF NOT EXISTS resources (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					resource_type VARCHAR(50) NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'active',
					cloud_provider VARCHAR(50),
					region VARCHAR(100),
					account_id VARCHAR(255),
					resource_id VARCHAR(512),
					owner_team_id UUID REFERENCES teams(id) ON DELETE SET NULL,
					attributes JSONB NOT NULL DEFAULT '{}',
					tags JSONB NOT NULL DEFAULT '[]',
					external_id VARCHAR(255),` + auditColumns + `,
					CONSTRAINT uq_resources_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_resources_tenant_id ON resources(tenant_id);
			`,
		},
		{
			Version:     5,
			Description: "Create incidents and timeline tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS incidents (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					title VARCHAR(512) NOT NULL,
					description TEXT,
					severity VARCHAR(50) NOT NULL,
					status VARCHAR(50) NOT NULL DEFAULT 'investigating',
					incident_commander_id UUID REFERENCES users(id) ON DELETE SET NULL,
					detected_at TIMESTAMPTZ,
					acknowledged_at TIMESTAMPTZ,
					resolved_at TIMESTAMPTZ,
					slack_channel VARCHAR(255),
					pagerduty_incident_id VARCHAR(255),
					postmortem_url VARCHAR(2048),
					attributes JSONB NOT NULL DEFAULT '{}',` + auditColumns + `
				);
				CREATE INDEX IF NOT EXISTS idx_incidents_tenant_id ON incidents(tenant_id);

				CREATE TABLE IF NOT EXISTS incident_timeline_entries (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					incident_id UUID NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
					occurred_at TIMESTAMPTZ NOT NULL,
					entry_type VARCHAR(100) NOT NULL,
					message TEXT NOT NULL,
					author_id UUID REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_incident_timeline_incident_id ON incident_timeline_entries(incident_id);
			`,
		},
		{
			Version:     6,
			Description: "Create scorecards and criteria tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS scorecards (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					entity_type VARCHAR(50) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					passing_threshold INTEGER NOT NULL DEFAULT 70,` + auditColumns + `,
					CONSTRAINT uq_scorecards_tenant_slug UNIQUE (tenant_id, slug)
				);
				CREATE INDEX IF NOT EXISTS idx_scorecards_tenant_id ON scorecards(tenant_id);

				CREATE TABLE IF NOT EXISTS scorecard_criteria (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					scorecard_id UUID NOT NULL REFERENCES scorecards(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					weight INTEGER NOT NULL DEFAULT 1,
					rule_type VARCHAR(100) NOT NULL,
					rule_config JSONB NOT NULL DEFAULT '{}',
					sort_order INTEGER NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_scorecard_criteria_scorecard_id ON scorecard_criteria(scorecard_id);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL,
					event_type VARCHAR(255) NOT NULL,
					actor_id UUID,
					actor_type VARCHAR(50) NOT NULL DEFAULT 'user',
					entity_type VARCHAR(100),
					entity_id UUID,
					before JSONB,
					after JSONB,
					metadata JSONB NOT NULL DEFAULT '{}',
					ip_address VARCHAR(45),
					user_agent VARCHAR(512),
					request_id VARCHAR(64),
					occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_occurred ON audit_logs(tenant_id, occurred_at);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_actor ON audit_logs(actor_id);
			`,
		},
	}
}

// Migrate applies every pending migration, each in its own transaction
func Migrate(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
