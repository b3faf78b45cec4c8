package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Incident is an operational incident and its lifecycle timestamps
type Incident struct {
	ID                  uuid.UUID        `json:"id"`
	TenantID            uuid.UUID        `json:"tenant_id"`
	Title               string           `json:"title"`
	Description         *string          `json:"description"`
	Severity            IncidentSeverity `json:"severity"`
	Status              IncidentStatus   `json:"status"`
	IncidentCommanderID *uuid.UUID       `json:"incident_commander_id"`
	DetectedAt          *time.Time       `json:"detected_at"`
	AcknowledgedAt      *time.Time       `json:"acknowledged_at"`
	ResolvedAt          *time.Time       `json:"resolved_at"`
	SlackChannel        *string          `json:"slack_channel"`
	PagerDutyIncidentID *string          `json:"pagerduty_incident_id"`
	PostmortemURL       *string          `json:"postmortem_url"`
	Attributes          JSONObject       `json:"attributes"`
	Stamps
}

type IncidentCreate struct {
	Title               string           `json:"title" validate:"required,min=1,max=512"`
	Description         *string          `json:"description"`
	Severity            IncidentSeverity `json:"severity" validate:"required,oneof=critical major minor"`
	Status              IncidentStatus   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	IncidentCommanderID *uuid.UUID       `json:"incident_commander_id"`
	DetectedAt          *time.Time       `json:"detected_at"`
	AcknowledgedAt      *time.Time       `json:"acknowledged_at"`
	SlackChannel        *string          `json:"slack_channel"`
	PagerDutyIncidentID *string          `json:"pagerduty_incident_id"`
	PostmortemURL       *string          `json:"postmortem_url" validate:"omitempty,url"`
	Attributes          JSONObject       `json:"attributes"`
}

func (in IncidentCreate) Values() Values {
	v := Values{
		"title":      in.Title,
		"severity":   in.Severity,
		"status":     orDefault(in.Status, IncidentInvestigating),
		"attributes": in.Attributes,
	}
	setIf(v, "description", in.Description)
	setIf(v, "incident_commander_id", in.IncidentCommanderID)
	setIf(v, "detected_at", in.DetectedAt)
	setIf(v, "acknowledged_at", in.AcknowledgedAt)
	setIf(v, "slack_channel", in.SlackChannel)
	setIf(v, "pagerduty_incident_id", in.PagerDutyIncidentID)
	setIf(v, "postmortem_url", in.PostmortemURL)
	return v
}

type IncidentUpdate struct {
	Title               *string           `json:"title" validate:"omitempty,min=1,max=512"`
	Description         *string           `json:"description"`
	Severity            *IncidentSeverity `json:"severity" validate:"omitempty,oneof=critical major minor"`
	Status              *IncidentStatus   `json:"status" validate:"omitempty,oneof=investigating identified monitoring resolved"`
	IncidentCommanderID *uuid.UUID        `json:"incident_commander_id"`
	DetectedAt          *time.Time        `json:"detected_at"`
	AcknowledgedAt      *time.Time        `json:"acknowledged_at"`
	ResolvedAt          *time.Time        `json:"resolved_at"`
	SlackChannel        *string           `json:"slack_channel"`
	PagerDutyIncidentID *string           `json:"pagerduty_incident_id"`
	PostmortemURL       *string           `json:"postmortem_url" validate:"omitempty,url"`
	Attributes          JSONObject        `json:"attributes"`
}

func (in IncidentUpdate) Values() Values {
	v := Values{}
	setIf(v, "title", in.Title)
	setIf(v, "description", in.Description)
	setIf(v, "severity", in.Severity)
	setIf(v, "status", in.Status)
	setIf(v, "incident_commander_id", in.IncidentCommanderID)
	setIf(v, "detected_at", in.DetectedAt)
	setIf(v, "acknowledged_at", in.AcknowledgedAt)
	setIf(v, "resolved_at", in.ResolvedAt)
	setIf(v, "slack_channel", in.SlackChannel)
	setIf(v, "pagerduty_incident_id", in.PagerDutyIncidentID)
	setIf(v, "postmortem_url", in.PostmortemURL)
	if in.Attributes != nil {
		v["attributes"] = in.Attributes
	}
	return v
}

func IncidentDefinition() *Definition[Incident] {
	return &Definition[Incident]{
		Kind:  audit.KindIncident,
		Table: "incidents",
		Columns: withStamps("id", "tenant_id", "title", "description", "severity", "status", "incident_commander_id",
			"detected_at", "acknowledged_at", "resolved_at", "slack_channel", "pagerduty_incident_id", "postmortem_url", "attributes"),
		Mutable: []string{"title", "description", "severity", "status", "incident_commander_id", "detected_at",
			"acknowledged_at", "resolved_at", "slack_channel", "pagerduty_incident_id", "postmortem_url", "attributes"},
		Filterable:   []string{"severity", "status", "incident_commander_id"},
		Sortable:     []string{"title", "severity", "status", "detected_at", "resolved_at", "updated_at"},
		SearchColumn: "title",
		Scan: func(row storage.RowScanner) (*Incident, error) {
			i := &Incident{}
			err := row.Scan(append([]interface{}{
				&i.ID, &i.TenantID, &i.Title, &i.Description, &i.Severity, &i.Status, &i.IncidentCommanderID,
				&i.DetectedAt, &i.AcknowledgedAt, &i.ResolvedAt, &i.SlackChannel, &i.PagerDutyIncidentID, &i.PostmortemURL, &i.Attributes,
			}, i.Stamps.dest()...)...)
			return i, err
		},
		ID: func(i *Incident) uuid.UUID { return i.ID },
		Snapshot: func(i *Incident) map[string]interface{} {
			return map[string]interface{}{"title": i.Title, "severity": i.Severity, "status": i.Status}
		},
	}
}

// TimelineEntry is one event in an incident's history
type TimelineEntry struct {
	ID         uuid.UUID  `json:"id"`
	IncidentID uuid.UUID  `json:"incident_id"`
	OccurredAt time.Time  `json:"occurred_at"`
	EntryType  string     `json:"entry_type"`
	Message    string     `json:"message"`
	AuthorID   *uuid.UUID `json:"author_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

type TimelineEntryCreate struct {
	OccurredAt time.Time  `json:"occurred_at" validate:"required"`
	EntryType  string     `json:"entry_type" validate:"required,min=1,max=100"`
	Message    string     `json:"message" validate:"required,min=1"`
	AuthorID   *uuid.UUID `json:"author_id"`
}

type ResolveRequest struct {
	ResolvedAt     *time.Time `json:"resolved_at"`
	PostmortemURL  *string    `json:"postmortem_url" validate:"omitempty,url"`
	ResolutionNote *string    `json:"resolution_note"`
}

// EntryTypeResolution marks the timeline entry written by Resolve
const EntryTypeResolution = "resolution"

// IncidentService adds the timeline and resolve flow to the generic service
type IncidentService struct {
	*CachedService[Incident]
	now func() time.Time
}

func NewIncidentService(db storage.DB, cache storage.Cache, auditWriter *audit.Writer, metrics *observability.Metrics, ttl time.Duration) *IncidentService {
	return &IncidentService{
		CachedService: NewCachedService(db, IncidentDefinition(), cache, auditWriter, metrics, ttl),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func insertTimelineEntry(ctx context.Context, q storage.DBTX, e *TimelineEntry) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO incident_timeline_entries (incident_id, occurred_at, entry_type, message, author_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.IncidentID, e.OccurredAt, e.EntryType, e.Message, e.AuthorID,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert timeline entry: %w", err)
	}
	return nil
}

// AddTimelineEntry appends an entry to a live incident. The author defaults
// to the acting user.
func (s *IncidentService) AddTimelineEntry(ctx context.Context, tenantID, incidentID, actorID uuid.UUID, in TimelineEntryCreate) (*TimelineEntry, error) {
	entry := &TimelineEntry{
		IncidentID: incidentID,
		OccurredAt: in.OccurredAt,
		EntryType:  in.EntryType,
		Message:    in.Message,
		AuthorID:   in.AuthorID,
	}
	if entry.AuthorID == nil {
		entry.AuthorID = &actorID
	}

	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[Incident]) error {
		if _, err := repo.GetOr404(ctx, tenantID, incidentID); err != nil {
			return err
		}
		if err := insertTimelineEntry(ctx, tx, entry); err != nil {
			return err
		}
		return s.Audit(ctx, tx, tenantID, actorID, audit.EventIncidentTimelineAdded, incidentID, nil,
			map[string]interface{}{"entry_type": entry.EntryType, "message": entry.Message})
	})
	if err != nil {
		return nil, err
	}
	s.AuditCommitted(audit.EventIncidentTimelineAdded)
	return entry, nil
}

// Resolve marks a live incident resolved and records a resolution entry.
// Resolving twice is a bad request.
func (s *IncidentService) Resolve(ctx context.Context, tenantID, id, actorID uuid.UUID, in ResolveRequest) (*Incident, error) {
	var resolved *Incident
	err := s.InTx(ctx, tenantID, func(tx *sql.Tx, repo *Repository[Incident]) error {
		current, err := repo.GetOr404(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current.Status == IncidentResolved {
			return apperrors.BadRequest("Incident is already resolved")
		}

		resolvedAt := s.now()
		if in.ResolvedAt != nil {
			resolvedAt = in.ResolvedAt.UTC()
		}
		values := Values{"status": IncidentResolved, "resolved_at": resolvedAt}
		setIf(values, "postmortem_url", in.PostmortemURL)
		if resolved, err = repo.Update(ctx, tenantID, id, values, &actorID); err != nil {
			return err
		}

		message := "Incident resolved"
		if in.ResolutionNote != nil && *in.ResolutionNote != "" {
			message = *in.ResolutionNote
		}
		if err := insertTimelineEntry(ctx, tx, &TimelineEntry{
			IncidentID: id,
			OccurredAt: resolvedAt,
			EntryType:  EntryTypeResolution,
			Message:    message,
			AuthorID:   &actorID,
		}); err != nil {
			return err
		}

		return s.Audit(ctx, tx, tenantID, actorID, audit.EventIncidentResolved, id,
			map[string]interface{}{"status": current.Status, "resolved_at": nil},
			map[string]interface{}{"status": IncidentResolved, "resolved_at": resolvedAt.Format(time.RFC3339)})
	})
	if err != nil {
		return nil, err
	}
	s.AuditCommitted(audit.EventIncidentResolved)
	observability.FromContext(ctx).WithField("incident_id", id.String()).Info("incident resolved")
	return resolved, nil
}

// Timeline lists a live incident's entries oldest first
func (s *IncidentService) Timeline(ctx context.Context, tenantID, incidentID uuid.UUID) ([]*TimelineEntry, error) {
	if _, err := s.Get(ctx, tenantID, incidentID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, occurred_at, entry_type, message, author_id, created_at
		FROM incident_timeline_entries
		WHERE incident_id = $1
		ORDER BY occurred_at ASC, created_at ASC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}
	defer rows.Close()

	entries := []*TimelineEntry{}
	for rows.Next() {
		e := &TimelineEntry{}
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.OccurredAt, &e.EntryType, &e.Message, &e.AuthorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timeline entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
