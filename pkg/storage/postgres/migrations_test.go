package postgres

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/observability"
)

func TestMigrations_Ordered(t *testing.T) {
	migrations := Migrations()
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.SQL)
	}
}

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := observability.NewLogger(observability.InfoLevel, observability.FormatJSON, io.Discard)
	migrations := Migrations()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	applied := sqlmock.NewRows([]string{"version"})
	for _, m := range migrations[:len(migrations)-1] {
		applied.AddRow(m.Version)
	}
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(applied)

	last := migrations[len(migrations)-1]
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_logs")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(last.Version, last.Description).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db, logger))
	assert.NoError(t, mock.ExpectationsWereMet())
}
