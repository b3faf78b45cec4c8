package catalog

import (
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Person is an employee record, unique per tenant by email
type Person struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DisplayName    string     `json:"display_name"`
	Email          string     `json:"email"`
	Title          *string    `json:"title"`
	Department     *string    `json:"department"`
	Location       *string    `json:"location"`
	ManagerID      *uuid.UUID `json:"manager_id"`
	TeamID         *uuid.UUID `json:"team_id"`
	SlackUserID    *string    `json:"slack_user_id"`
	GitHubUsername *string    `json:"github_username"`
	ExternalHRID   *string    `json:"external_hr_id"`
	IsActive       bool       `json:"is_active"`
	Stamps
}

type PersonCreate struct {
	FirstName      string     `json:"first_name" validate:"required,min=1,max=100"`
	LastName       string     `json:"last_name" validate:"required,min=1,max=100"`
	DisplayName    string     `json:"display_name" validate:"required,min=1,max=255"`
	Email          string     `json:"email" validate:"required,email"`
	Title          *string    `json:"title"`
	Department     *string    `json:"department"`
	Location       *string    `json:"location"`
	ManagerID      *uuid.UUID `json:"manager_id"`
	TeamID         *uuid.UUID `json:"team_id"`
	SlackUserID    *string    `json:"slack_user_id" validate:"omitempty,max=50"`
	GitHubUsername *string    `json:"github_username" validate:"omitempty,max=100"`
	ExternalHRID   *string    `json:"external_hr_id"`
	IsActive       *bool      `json:"is_active"`
}

func (in PersonCreate) Values() Values {
	active := true
	setFromPtr(&active, in.IsActive)
	v := Values{
		"first_name":   in.FirstName,
		"last_name":    in.LastName,
		"display_name": in.DisplayName,
		"email":        strings.ToLower(in.Email),
		"is_active":    active,
	}
	setIf(v, "title", in.Title)
	setIf(v, "department", in.Department)
	setIf(v, "location", in.Location)
	setIf(v, "manager_id", in.ManagerID)
	setIf(v, "team_id", in.TeamID)
	setIf(v, "slack_user_id", in.SlackUserID)
	setIf(v, "github_username", in.GitHubUsername)
	setIf(v, "external_hr_id", in.ExternalHRID)
	return v
}

type PersonUpdate struct {
	FirstName      *string    `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName       *string    `json:"last_name" validate:"omitempty,min=1,max=100"`
	DisplayName    *string    `json:"display_name" validate:"omitempty,min=1,max=255"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	Title          *string    `json:"title"`
	Department     *string    `json:"department"`
	Location       *string    `json:"location"`
	ManagerID      *uuid.UUID `json:"manager_id"`
	TeamID         *uuid.UUID `json:"team_id"`
	SlackUserID    *string    `json:"slack_user_id" validate:"omitempty,max=50"`
	GitHubUsername *string    `json:"github_username" validate:"omitempty,max=100"`
	ExternalHRID   *string    `json:"external_hr_id"`
	IsActive       *bool      `json:"is_active"`
}

func (in PersonUpdate) Values() Values {
	v := Values{}
	setIf(v, "first_name", in.FirstName)
	setIf(v, "last_name", in.LastName)
	setIf(v, "display_name", in.DisplayName)
	if in.Email != nil {
		v["email"] = strings.ToLower(*in.Email)
	}
	setIf(v, "title", in.Title)
	setIf(v, "department", in.Department)
	setIf(v, "location", in.Location)
	setIf(v, "manager_id", in.ManagerID)
	setIf(v, "team_id", in.TeamID)
	setIf(v, "slack_user_id", in.SlackUserID)
	setIf(v, "github_username", in.GitHubUsername)
	setIf(v, "external_hr_id", in.ExternalHRID)
	setIf(v, "is_active", in.IsActive)
	return v
}

// PersonDefinition searches on display_name since people have no name column
func PersonDefinition() *Definition[Person] {
	return &Definition[Person]{
		Kind:  audit.KindPerson,
		Table: "people",
		Columns: withStamps("id", "tenant_id", "first_name", "last_name", "display_name", "email", "title",
			"department", "location", "manager_id", "team_id", "slack_user_id", "github_username", "external_hr_id", "is_active"),
		Mutable: []string{"first_name", "last_name", "display_name", "email", "title", "department", "location",
			"manager_id", "team_id", "slack_user_id", "github_username", "external_hr_id", "is_active"},
		Filterable:   []string{"department", "location", "manager_id", "team_id", "is_active"},
		Sortable:     []string{"first_name", "last_name", "display_name", "email", "department", "updated_at"},
		SearchColumn: "display_name",
		UniqueField:  "email",
		Scan: func(row storage.RowScanner) (*Person, error) {
			p := &Person{}
			err := row.Scan(append([]interface{}{
				&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &p.DisplayName, &p.Email, &p.Title,
				&p.Department, &p.Location, &p.ManagerID, &p.TeamID, &p.SlackUserID, &p.GitHubUsername, &p.ExternalHRID, &p.IsActive,
			}, p.Stamps.dest()...)...)
			return p, err
		},
		ID: func(p *Person) uuid.UUID { return p.ID },
		Snapshot: func(p *Person) map[string]interface{} {
			return map[string]interface{}{"display_name": p.DisplayName, "email": p.Email, "is_active": p.IsActive}
		},
	}
}
