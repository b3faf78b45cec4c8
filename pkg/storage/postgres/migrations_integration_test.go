//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("appr_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, config.DatabaseConfig{URL: connStr, MaxConns: 5, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})
	return db
}

func TestMigrate_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	logger := observability.NewLogger(observability.InfoLevel, observability.FormatJSON, io.Discard)

	require.NoError(t, Migrate(ctx, db, logger))
	require.NoError(t, Migrate(ctx, db, logger), "second run is a no-op")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(Migrations()), count)

	tenant := "00000000-0000-0000-0000-000000000001"
	_, err := db.ExecContext(ctx, "INSERT INTO teams (tenant_id, name, slug) VALUES ($1, 'Core', 'core')", tenant)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO teams (tenant_id, name, slug) VALUES ($1, 'Core 2', 'core')", tenant)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, "uq_teams_tenant_slug", ConstraintName(err))
}
