package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{
	"id", "tenant_id", "event_type", "actor_id", "actor_type",
	"entity_type", "entity_id", "before", "after", "metadata",
	"ip_address", "user_agent", "request_id", "occurred_at",
}

func TestStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tenantID := uuid.New()
	actorID := uuid.New()
	entityID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	occurred := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM audit_logs WHERE tenant_id = $1 AND entity_type = $2 AND actor_id = $3 AND occurred_at >= $4",
	)).
		WithArgs(tenantID, "Service", actorID, from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY occurred_at DESC LIMIT $5 OFFSET $6")).
		WithArgs(tenantID, "Service", actorID, from, 20, 40).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			uuid.New().String(), tenantID.String(), "service.created", actorID.String(), "user",
			"Service", entityID.String(), nil, []byte(`{"name":"checkout"}`), []byte(`{}`),
			"10.0.0.1", nil, "req-9", occurred,
		))

	records, total, err := NewStore(db).List(context.Background(), tenantID, Filter{
		EntityType: "Service",
		ActorID:    &actorID,
		From:       &from,
	}, 20, 40)
	require.NoError(t, err)
	assert.Equal(t, 41, total)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "service.created", rec.EventType)
	assert.Equal(t, ActorUser, rec.ActorType)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, entityID, *rec.EntityID)
	assert.JSONEq(t, `null`, string(rec.Before))
	assert.JSONEq(t, `{"name":"checkout"}`, string(rec.After))
	require.NotNil(t, rec.IPAddress)
	assert.Equal(t, "10.0.0.1", *rec.IPAddress)
	assert.Nil(t, rec.UserAgent)
	assert.Equal(t, occurred, rec.OccurredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildWhere(t *testing.T) {
	tenantID := uuid.New()
	id := uuid.New()
	to := time.Now()

	where, args := buildWhere(tenantID, Filter{EntityID: &id, EventType: "auth.login", To: &to})
	assert.Equal(t, "tenant_id = $1 AND entity_id = $2 AND event_type = $3 AND occurred_at <= $4", where)
	assert.Equal(t, []interface{}{tenantID, id, "auth.login", to}, args)

	where, args = buildWhere(tenantID, Filter{})
	assert.Equal(t, "tenant_id = $1", where)
	assert.Len(t, args, 1)
}
