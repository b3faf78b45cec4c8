package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/contextkeys"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/storage"
)

const insertQuery = `
	INSERT INTO audit_logs (
		tenant_id, event_type, actor_id, actor_type,
		entity_type, entity_id, before, after, metadata,
		ip_address, user_agent, request_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// Writer appends audit events
type Writer struct {
	metrics *observability.Metrics
}

// NewWriter creates a writer. metrics may be nil.
func NewWriter(metrics *observability.Metrics) *Writer {
	return &Writer{metrics: metrics}
}

// Log inserts e using q, which is normally the caller's transaction.
// Errors are returned so the caller's transaction rolls back. The event is
// not counted until the caller reports it through Committed.
func (w *Writer) Log(ctx context.Context, q storage.DBTX, e Entry) error {
	before, err := marshalSnapshot(e.Before)
	if err != nil {
		return fmt.Errorf("failed to marshal before snapshot: %w", err)
	}
	after, err := marshalSnapshot(e.After)
	if err != nil {
		return fmt.Errorf("failed to marshal after snapshot: %w", err)
	}

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	actorType := e.ActorType
	if actorType == "" {
		actorType = ActorSystem
		if e.ActorID != nil {
			actorType = ActorUser
		}
	}

	var entityType *string
	var entityID *uuid.UUID
	if e.Entity != nil {
		name := e.Entity.Kind.TypeName()
		id := e.Entity.ID
		entityType, entityID = &name, &id
	}

	client := contextkeys.GetClientInfo(ctx)

	_, err = q.ExecContext(ctx, insertQuery,
		e.TenantID, e.EventType, e.ActorID, string(actorType),
		entityType, entityID, before, after, metadataJSON,
		nullString(client.IPAddress), nullString(client.UserAgent), nullString(observability.GetRequestID(ctx)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"event_type": e.EventType,
		"entity_id":  entityID,
	}).Debug("audit event written")
	return nil
}

// Committed counts events whose transaction has committed
func (w *Writer) Committed(eventTypes ...string) {
	if w == nil {
		return
	}
	for _, eventType := range eventTypes {
		w.metrics.AuditEvent(eventType)
	}
}

// LogLogin records a successful authentication
func (w *Writer) LogLogin(ctx context.Context, q storage.DBTX, tenantID, userID uuid.UUID, provider string) error {
	return w.Log(ctx, q, Entry{
		TenantID:  tenantID,
		EventType: EventLogin,
		ActorID:   &userID,
		Entity:    &EntityRef{Kind: KindUser, ID: userID},
		Metadata:  map[string]interface{}{"auth_provider": provider},
	})
}

// LogLogout records a session being ended
func (w *Writer) LogLogout(ctx context.Context, q storage.DBTX, tenantID, userID uuid.UUID) error {
	return w.Log(ctx, q, Entry{
		TenantID:  tenantID,
		EventType: EventLogout,
		ActorID:   &userID,
		Entity:    &EntityRef{Kind: KindUser, ID: userID},
	})
}

// marshalSnapshot returns an untyped nil for absent snapshots so the
// column is written as SQL NULL
func marshalSnapshot(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
