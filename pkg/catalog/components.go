package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Component is a reusable building block such as a library or SDK
type Component struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   *string       `json:"description"`
	ComponentType ComponentType `json:"component_type"`
	Status        EntityStatus  `json:"status"`
	OwnerTeamID   *uuid.UUID    `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID    `json:"owner_person_id"`
	Language      *string       `json:"language"`
	Version       *string       `json:"version"`
	PackageName   *string       `json:"package_name"`
	Attributes    JSONObject    `json:"attributes"`
	Tags          JSONList      `json:"tags"`
	ExternalID    *string       `json:"external_id"`
	Stamps
}

type ComponentCreate struct {
	Name          string        `json:"name" validate:"required,min=1,max=255"`
	Slug          string        `json:"slug" validate:"required,min=1,max=100"`
	Description   *string       `json:"description"`
	ComponentType ComponentType `json:"component_type" validate:"omitempty,oneof=library microservice sdk agent ui_component"`
	Status        EntityStatus  `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OwnerTeamID   *uuid.UUID    `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID    `json:"owner_person_id"`
	Language      *string       `json:"language" validate:"omitempty,max=100"`
	Version       *string       `json:"version" validate:"omitempty,max=100"`
	PackageName   *string       `json:"package_name" validate:"omitempty,max=255"`
	Attributes    JSONObject    `json:"attributes"`
	Tags          JSONList      `json:"tags"`
	ExternalID    *string       `json:"external_id"`
}

func (in ComponentCreate) Values() Values {
	v := Values{
		"name":           in.Name,
		"slug":           in.Slug,
		"component_type": orDefault(in.ComponentType, ComponentLibrary),
		"status":         orDefault(in.Status, StatusActive),
		"attributes":     in.Attributes,
		"tags":           in.Tags,
	}
	setIf(v, "description", in.Description)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "language", in.Language)
	setIf(v, "version", in.Version)
	setIf(v, "package_name", in.PackageName)
	setIf(v, "external_id", in.ExternalID)
	return v
}

type ComponentUpdate struct {
	Name          *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Slug          *string        `json:"slug" validate:"omitempty,min=1,max=100"`
	Description   *string        `json:"description"`
	ComponentType *ComponentType `json:"component_type" validate:"omitempty,oneof=library microservice sdk agent ui_component"`
	Status        *EntityStatus  `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OwnerTeamID   *uuid.UUID     `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID     `json:"owner_person_id"`
	Language      *string        `json:"language" validate:"omitempty,max=100"`
	Version       *string        `json:"version" validate:"omitempty,max=100"`
	PackageName   *string        `json:"package_name" validate:"omitempty,max=255"`
	Attributes    JSONObject     `json:"attributes"`
	Tags          JSONList       `json:"tags"`
	ExternalID    *string        `json:"external_id"`
}

func (in ComponentUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "component_type", in.ComponentType)
	setIf(v, "status", in.Status)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "language", in.Language)
	setIf(v, "version", in.Version)
	setIf(v, "package_name", in.PackageName)
	setIf(v, "external_id", in.ExternalID)
	if in.Attributes != nil {
		v["attributes"] = in.Attributes
	}
	if in.Tags != nil {
		v["tags"] = in.Tags
	}
	return v
}

func ComponentDefinition() *Definition[Component] {
	return &Definition[Component]{
		Kind:  audit.KindComponent,
		Table: "components",
		Columns: withStamps("id", "tenant_id", "name", "slug", "description", "component_type", "status",
			"owner_team_id", "owner_person_id", "language", "version", "package_name", "attributes", "tags", "external_id"),
		Mutable: []string{"name", "slug", "description", "component_type", "status", "owner_team_id",
			"owner_person_id", "language", "version", "package_name", "attributes", "tags", "external_id"},
		Filterable:   []string{"component_type", "status", "owner_team_id", "owner_person_id", "language"},
		Sortable:     []string{"name", "slug", "status", "component_type", "language", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Component, error) {
			c := &Component{}
			err := row.Scan(append([]interface{}{
				&c.ID, &c.TenantID, &c.Name, &c.Slug, &c.Description, &c.ComponentType, &c.Status,
				&c.OwnerTeamID, &c.OwnerPersonID, &c.Language, &c.Version, &c.PackageName, &c.Attributes, &c.Tags, &c.ExternalID,
			}, c.Stamps.dest()...)...)
			return c, err
		},
		ID: func(c *Component) uuid.UUID { return c.ID },
		Snapshot: func(c *Component) map[string]interface{} {
			return map[string]interface{}{"name": c.Name, "slug": c.Slug, "component_type": c.ComponentType, "status": c.Status}
		},
	}
}
