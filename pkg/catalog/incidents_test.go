package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
)

var incidentColumnNames = []string{
	"id", "tenant_id", "title", "description", "severity", "status", "incident_commander_id",
	"detected_at", "acknowledged_at", "resolved_at", "slack_channel", "pagerduty_incident_id", "postmortem_url", "attributes",
	"created_at", "updated_at", "created_by", "updated_by",
}

func incidentRow(id, tenantID uuid.UUID, status IncidentStatus, resolvedAt interface{}) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(incidentColumnNames).AddRow(
		id.String(), tenantID.String(), "Checkout latency", nil, string(SeverityMajor), string(status), nil,
		now, nil, resolvedAt, nil, nil, nil, `{}`,
		now, now, nil, nil,
	)
}

func (f *serviceFixture) incidents(now time.Time) *IncidentService {
	svc := NewIncidentService(f.db, f.cache, f.writer, f.metrics, time.Minute)
	svc.now = func() time.Time { return now }
	return svc
}

func TestIncidentService_Resolve(t *testing.T) {
	f := newServiceFixture(t)
	now := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	svc := f.incidents(now)
	tenantID, incidentID, actorID := uuid.New(), uuid.New(), uuid.New()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT .+ FROM incidents WHERE id = \\$1").
		WithArgs(incidentID, tenantID).
		WillReturnRows(incidentRow(incidentID, tenantID, IncidentInvestigating, nil))
	f.mock.ExpectQuery("UPDATE incidents SET updated_by = \\$3, updated_at = NOW\\(\\), resolved_at = \\$4, status = \\$5 WHERE").
		WithArgs(incidentID, tenantID, actorID, now, "resolved").
		WillReturnRows(incidentRow(incidentID, tenantID, IncidentResolved, now))
	f.mock.ExpectQuery("INSERT INTO incident_timeline_entries").
		WithArgs(incidentID, now, EntryTypeResolution, "Incident resolved", actorID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), now))
	f.expectAudit(tenantID, actorID, audit.EventIncidentResolved, incidentID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	incident, err := svc.Resolve(context.Background(), tenantID, incidentID, actorID, ResolveRequest{})
	require.NoError(t, err)
	assert.Equal(t, IncidentResolved, incident.Status)
	require.NotNil(t, incident.ResolvedAt)
	assert.True(t, now.Equal(*incident.ResolvedAt))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIncidentService_ResolveTwice(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.incidents(time.Now())
	tenantID, incidentID, actorID := uuid.New(), uuid.New(), uuid.New()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT .+ FROM incidents").
		WithArgs(incidentID, tenantID).
		WillReturnRows(incidentRow(incidentID, tenantID, IncidentResolved, time.Now()))
	f.mock.ExpectRollback()

	_, err := svc.Resolve(context.Background(), tenantID, incidentID, actorID, ResolveRequest{})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindBadRequest, appErr.Kind)
	assert.Equal(t, "Incident is already resolved", appErr.Detail)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIncidentService_AddTimelineEntry(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.incidents(time.Now())
	tenantID, incidentID, actorID := uuid.New(), uuid.New(), uuid.New()
	occurred := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT .+ FROM incidents").
		WithArgs(incidentID, tenantID).
		WillReturnRows(incidentRow(incidentID, tenantID, IncidentIdentified, nil))
	f.mock.ExpectQuery("INSERT INTO incident_timeline_entries").
		WithArgs(incidentID, occurred, "update", "Rolled back deploy", actorID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
	f.expectAudit(tenantID, actorID, audit.EventIncidentTimelineAdded, incidentID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	entry, err := svc.AddTimelineEntry(context.Background(), tenantID, incidentID, actorID, TimelineEntryCreate{
		OccurredAt: occurred,
		EntryType:  "update",
		Message:    "Rolled back deploy",
	})
	require.NoError(t, err)
	require.NotNil(t, entry.AuthorID)
	assert.Equal(t, actorID, *entry.AuthorID)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestIncidentService_TimelineMissingIncident(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.incidents(time.Now())
	tenantID, incidentID := uuid.New(), uuid.New()

	f.mock.ExpectQuery("SELECT .+ FROM incidents").
		WithArgs(incidentID, tenantID).
		WillReturnRows(sqlmock.NewRows(incidentColumnNames))

	_, err := svc.Timeline(context.Background(), tenantID, incidentID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestScorecardService_CreateWithCriteria(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewScorecardService(f.db, f.cache, f.writer, f.metrics, time.Minute)
	tenantID, actorID, scorecardID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO scorecards").
		WithArgs(tenantID, actorID, actorID, "service", true, "Production readiness", 80, "prod").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "name", "slug", "description", "entity_type", "is_active", "passing_threshold",
			"created_at", "updated_at", "created_by", "updated_by",
		}).AddRow(scorecardID.String(), tenantID.String(), "Production readiness", "prod", nil, "service", true, 80, now, now, nil, nil))
	f.mock.ExpectQuery("INSERT INTO scorecard_criteria").
		WithArgs(scorecardID, "Has runbook", nil, 1, "field_present", sqlmock.AnyArg(), 0, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.NewString(), now, now))
	f.mock.ExpectQuery("INSERT INTO scorecard_criteria").
		WithArgs(scorecardID, "Has owner", nil, 3, "field_present", sqlmock.AnyArg(), 1, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.NewString(), now, now))
	f.expectAudit(tenantID, actorID, "scorecard.created", scorecardID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	threshold, weight := 80, 3
	scorecard, err := svc.CreateWithCriteria(context.Background(), tenantID, actorID, ScorecardCreate{
		Name:             "Production readiness",
		Slug:             "prod",
		EntityType:       "service",
		PassingThreshold: &threshold,
		Criteria: []CriterionCreate{
			{Name: "Has runbook", RuleType: "field_present", RuleConfig: JSONObject{"field": "runbook_url"}},
			{Name: "Has owner", RuleType: "field_present", Weight: &weight, SortOrder: 1},
		},
	})
	require.NoError(t, err)
	require.Len(t, scorecard.Criteria, 2)
	assert.Equal(t, 1, scorecard.Criteria[0].Weight)
	assert.Equal(t, 3, scorecard.Criteria[1].Weight)
	assert.NotNil(t, scorecard.Criteria[1].RuleConfig)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
