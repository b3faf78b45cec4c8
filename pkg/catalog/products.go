package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Product groups services under a business offering
type Product struct {
	ID            uuid.UUID    `json:"id"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Description   *string      `json:"description"`
	Status        EntityStatus `json:"status"`
	OwnerTeamID   *uuid.UUID   `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID   `json:"owner_person_id"`
	Tier          *int         `json:"tier"`
	Tags          JSONList     `json:"tags"`
	ExternalID    *string      `json:"external_id"`
	Stamps
}

type ProductCreate struct {
	Name          string       `json:"name" validate:"required,min=1,max=255"`
	Slug          string       `json:"slug" validate:"required,min=1,max=100"`
	Description   *string      `json:"description"`
	Status        EntityStatus `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OwnerTeamID   *uuid.UUID   `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID   `json:"owner_person_id"`
	Tier          *int         `json:"tier"`
	Tags          JSONList     `json:"tags"`
	ExternalID    *string      `json:"external_id"`
}

func (in ProductCreate) Values() Values {
	v := Values{
		"name":   in.Name,
		"slug":   in.Slug,
		"status": orDefault(in.Status, StatusActive),
		"tags":   in.Tags,
	}
	setIf(v, "description", in.Description)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "tier", in.Tier)
	setIf(v, "external_id", in.ExternalID)
	return v
}

type ProductUpdate struct {
	Name          *string       `json:"name" validate:"omitempty,min=1,max=255"`
	Slug          *string       `json:"slug" validate:"omitempty,min=1,max=100"`
	Description   *string       `json:"description"`
	Status        *EntityStatus `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OwnerTeamID   *uuid.UUID    `json:"owner_team_id"`
	OwnerPersonID *uuid.UUID    `json:"owner_person_id"`
	Tier          *int          `json:"tier"`
	Tags          JSONList      `json:"tags"`
	ExternalID    *string       `json:"external_id"`
}

func (in ProductUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "status", in.Status)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "tier", in.Tier)
	setIf(v, "external_id", in.ExternalID)
	if in.Tags != nil {
		v["tags"] = in.Tags
	}
	return v
}

func ProductDefinition() *Definition[Product] {
	return &Definition[Product]{
		Kind:  audit.KindProduct,
		Table: "products",
		Columns: withStamps("id", "tenant_id", "name", "slug", "description", "status",
			"owner_team_id", "owner_person_id", "tier", "tags", "external_id"),
		Mutable:      []string{"name", "slug", "description", "status", "owner_team_id", "owner_person_id", "tier", "tags", "external_id"},
		Filterable:   []string{"status", "owner_team_id", "owner_person_id", "tier"},
		Sortable:     []string{"name", "slug", "status", "tier", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Product, error) {
			p := &Product{}
			err := row.Scan(append([]interface{}{
				&p.ID, &p.TenantID, &p.Name, &p.Slug, &p.Description, &p.Status,
				&p.OwnerTeamID, &p.OwnerPersonID, &p.Tier, &p.Tags, &p.ExternalID,
			}, p.Stamps.dest()...)...)
			return p, err
		},
		ID: func(p *Product) uuid.UUID { return p.ID },
		Snapshot: func(p *Product) map[string]interface{} {
			return map[string]interface{}{"name": p.Name, "slug": p.Slug, "status": p.Status}
		},
	}
}
