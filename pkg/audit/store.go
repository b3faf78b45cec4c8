package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/storage"
)

const selectColumns = `
	id, tenant_id, event_type, actor_id, actor_type,
	entity_type, entity_id, before, after, metadata,
	ip_address, user_agent, request_id, occurred_at
`

// Store reads audit logs. Rows are never updated or deleted.
type Store struct {
	db storage.DBTX
}

// NewStore creates a new audit log store
func NewStore(db storage.DBTX) *Store {
	return &Store{db: db}
}

// List returns one page of a tenant's audit logs, newest first, and the
// total number of matching rows.
func (s *Store) List(ctx context.Context, tenantID uuid.UUID, filter Filter, limit, offset int) ([]*Record, int, error) {
	where, args := buildWhere(tenantID, filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM audit_logs WHERE %s ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2)
	records, err := s.query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Range returns every record for a tenant with from <= occurred_at < to,
// oldest first.
func (s *Store) Range(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*Record, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM audit_logs WHERE tenant_id = $1 AND occurred_at >= $2 AND occurred_at < $3 ORDER BY occurred_at ASC",
		selectColumns,
	)
	return s.query(ctx, query, tenantID, from, to)
}

// TenantsWithEvents lists tenants that have events in [from, to)
func (s *Store) TenantsWithEvents(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT tenant_id FROM audit_logs WHERE occurred_at >= $1 AND occurred_at < $2 ORDER BY tenant_id",
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func buildWhere(tenantID uuid.UUID, filter Filter) (string, []interface{}) {
	clauses := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != nil {
		add("entity_id = $%d", *filter.EntityID)
	}
	if filter.ActorID != nil {
		add("actor_id = $%d", *filter.ActorID)
	}
	if filter.EventType != "" {
		add("event_type = $%d", filter.EventType)
	}
	if filter.From != nil {
		add("occurred_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <= $%d", *filter.To)
	}

	return strings.Join(clauses, " AND "), args
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec := &Record{}
		var actorType string
		var before, after, metadata []byte
		var ip, ua, reqID sql.NullString

		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.EventType, &rec.ActorID, &actorType,
			&rec.EntityType, &rec.EntityID, &before, &after, &metadata,
			&ip, &ua, &reqID, &rec.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		rec.ActorType = ActorType(actorType)
		rec.Before = rawJSON(before)
		rec.After = rawJSON(after)
		rec.Metadata = rawJSON(metadata)
		rec.IPAddress = nullableString(ip)
		rec.UserAgent = nullableString(ua)
		rec.RequestID = nullableString(reqID)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return records, nil
}

func rawJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
