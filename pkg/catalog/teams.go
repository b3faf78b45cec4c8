package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Team owns services, components and resources. Teams may nest.
type Team struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  *string    `json:"description"`
	Email        *string    `json:"email"`
	SlackChannel *string    `json:"slack_channel"`
	ParentTeamID *uuid.UUID `json:"parent_team_id"`
	Stamps
}

type TeamCreate struct {
	Name         string     `json:"name" validate:"required,min=1,max=255"`
	Slug         string     `json:"slug" validate:"required,min=1,max=100"`
	Description  *string    `json:"description"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	SlackChannel *string    `json:"slack_channel" validate:"omitempty,max=255"`
	ParentTeamID *uuid.UUID `json:"parent_team_id"`
}

func (in TeamCreate) Values() Values {
	v := Values{"name": in.Name, "slug": in.Slug}
	setIf(v, "description", in.Description)
	setIf(v, "email", in.Email)
	setIf(v, "slack_channel", in.SlackChannel)
	setIf(v, "parent_team_id", in.ParentTeamID)
	return v
}

type TeamUpdate struct {
	Name         *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Slug         *string    `json:"slug" validate:"omitempty,min=1,max=100"`
	Description  *string    `json:"description"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	SlackChannel *string    `json:"slack_channel" validate:"omitempty,max=255"`
	ParentTeamID *uuid.UUID `json:"parent_team_id"`
}

func (in TeamUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "email", in.Email)
	setIf(v, "slack_channel", in.SlackChannel)
	setIf(v, "parent_team_id", in.ParentTeamID)
	return v
}

func TeamDefinition() *Definition[Team] {
	return &Definition[Team]{
		Kind:         audit.KindTeam,
		Table:        "teams",
		Columns:      withStamps("id", "tenant_id", "name", "slug", "description", "email", "slack_channel", "parent_team_id"),
		Mutable:      []string{"name", "slug", "description", "email", "slack_channel", "parent_team_id"},
		Filterable:   []string{"parent_team_id"},
		Sortable:     []string{"name", "slug", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Team, error) {
			t := &Team{}
			err := row.Scan(append([]interface{}{
				&t.ID, &t.TenantID, &t.Name, &t.Slug, &t.Description, &t.Email, &t.SlackChannel, &t.ParentTeamID,
			}, t.Stamps.dest()...)...)
			return t, err
		},
		ID: func(t *Team) uuid.UUID { return t.ID },
		Snapshot: func(t *Team) map[string]interface{} {
			return map[string]interface{}{"name": t.Name, "slug": t.Slug}
		},
	}
}
