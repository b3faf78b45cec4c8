package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	objects map[string][]byte
	err     error
}

func (m *memoryObjects) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = body
	return nil
}

func TestExporter_ObjectKey(t *testing.T) {
	e := NewExporter(nil, nil, "audit-logs")
	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	key := e.ObjectKey(tenantID, time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "audit-logs/00000000-0000-0000-0000-000000000001/2026/03/09.ndjson", key)
}

func TestExporter_ExportDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID := uuid.New()
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	mock.ExpectQuery("SELECT DISTINCT tenant_id FROM audit_logs").
		WithArgs(day, next).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(tenantID.String()))

	rows := sqlmock.NewRows(recordColumns)
	for i := 0; i < 2; i++ {
		rows.AddRow(
			uuid.New().String(), tenantID.String(), "auth.login", nil, "system",
			nil, nil, nil, nil, []byte(`{}`),
			nil, nil, nil, day.Add(time.Duration(i)*time.Hour),
		)
	}
	mock.ExpectQuery("ORDER BY occurred_at ASC").WithArgs(tenantID, day, next).WillReturnRows(rows)

	objects := &memoryObjects{}
	exporter := NewExporter(NewStore(db), objects, "audit-logs")

	result, err := exporter.ExportDay(context.Background(), day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tenants)
	assert.Equal(t, 2, result.Records)

	body, ok := objects.objects[exporter.ObjectKey(tenantID, day)]
	require.True(t, ok)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	lines := 0
	for scanner.Scan() {
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		assert.Equal(t, "auth.login", rec["event_type"])
		lines++
	}
	assert.Equal(t, 2, lines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExporter_ExportDay_UploadFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT DISTINCT tenant_id").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}).AddRow(tenantID.String()))
	mock.ExpectQuery("ORDER BY occurred_at ASC").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	exporter := NewExporter(NewStore(db), &memoryObjects{err: errors.New("access denied")}, "audit-logs")
	_, err = exporter.ExportDay(context.Background(), time.Now())
	assert.Error(t, err)
}
