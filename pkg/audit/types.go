package audit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies the type of record an event refers to
type EntityKind string

const (
	KindUser       EntityKind = "user"
	KindService    EntityKind = "service"
	KindComponent  EntityKind = "component"
	KindProduct    EntityKind = "product"
	KindResource   EntityKind = "resource"
	KindRepository EntityKind = "repository"
	KindTeam       EntityKind = "team"
	KindPerson     EntityKind = "person"
	KindIncident   EntityKind = "incident"
	KindScorecard  EntityKind = "scorecard"
)

// TypeName is the value stored in audit_logs.entity_type, e.g. "Service"
func (k EntityKind) TypeName() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// EntityRef points at the record an event is about
type EntityRef struct {
	Kind EntityKind
	ID   uuid.UUID
}

// ActorType distinguishes user-initiated events from system jobs
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)

// Action is the verb of a mutation event
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event types not derived from MutationEvent
const (
	EventLogin                  = "auth.login"
	EventLogout                 = "auth.logout"
	EventPasswordResetRequested = "user.password_reset_requested"
	EventIncidentTimelineAdded  = "incident.timeline_entry.added"
	EventIncidentResolved       = "incident.resolved"
	EventScorecardCriterionAdd  = "scorecard.criterion.added"
)

// MutationEvent builds "{kind}.{action}", e.g. "service.updated"
func MutationEvent(kind EntityKind, action Action) string {
	return string(kind) + "." + string(action)
}

// Entry is an event to be written
type Entry struct {
	TenantID  uuid.UUID
	EventType string
	ActorID   *uuid.UUID
	// ActorType defaults to user when ActorID is set and system otherwise
	ActorType ActorType
	Entity    *EntityRef
	Before    interface{}
	After     interface{}
	Metadata  map[string]interface{}
}

// Record is a persisted audit_logs row
type Record struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	EventType  string          `json:"event_type"`
	ActorID    *uuid.UUID      `json:"actor_id"`
	ActorType  ActorType       `json:"actor_type"`
	EntityType *string         `json:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	Metadata   json.RawMessage `json:"metadata"`
	IPAddress  *string         `json:"ip_address"`
	UserAgent  *string         `json:"user_agent"`
	RequestID  *string         `json:"request_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Filter narrows Store.List. Zero values are ignored.
type Filter struct {
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	EventType  string
	From       *time.Time
	To         *time.Time
}
