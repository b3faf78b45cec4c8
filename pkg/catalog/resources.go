package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Resource is a piece of cloud infrastructure
type Resource struct {
	ID            uuid.UUID    `json:"id"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Description   *string      `json:"description"`
	ResourceType  ResourceType `json:"resource_type"`
	Status        EntityStatus `json:"status"`
	CloudProvider *string      `json:"cloud_provider"`
	Region        *string      `json:"region"`
	AccountID     *string      `json:"account_id"`
	ResourceID    *string      `json:"resource_id"`
	OwnerTeamID   *uuid.UUID   `json:"owner_team_id"`
	Attributes    JSONObject   `json:"attributes"`
	Tags          JSONList     `json:"tags"`
	ExternalID    *string      `json:"external_id"`
	Stamps
}

type ResourceCreate struct {
	Name          string       `json:"name" validate:"required,min=1,max=255"`
	Slug          string       `json:"slug" validate:"required,min=1,max=100"`
	Description   *string      `json:"description"`
	ResourceType  ResourceType `json:"resource_type" validate:"required,oneof=ec2 virtual_machine logic_app storage_account container_instance kubernetes function_app load_balancer api_gateway cdn"`
	Status        EntityStatus `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	CloudProvider *string      `json:"cloud_provider" validate:"omitempty,max=50"`
	Region        *string      `json:"region" validate:"omitempty,max=100"`
	AccountID     *string      `json:"account_id"`
	ResourceID    *string      `json:"resource_id"`
	OwnerTeamID   *uuid.UUID   `json:"owner_team_id"`
	Attributes    JSONObject   `json:"attributes"`
	Tags          JSONList     `json:"tags"`
	ExternalID    *string      `json:"external_id"`
}

func (in ResourceCreate) Values() Values {
	v := Values{
		"name":          in.Name,
		"slug":          in.Slug,
		"resource_type": in.ResourceType,
		"status":        orDefault(in.Status, StatusActive),
		"attributes":    in.Attributes,
		"tags":          in.Tags,
	}
	setIf(v, "description", in.Description)
	setIf(v, "cloud_provider", in.CloudProvider)
	setIf(v, "region", in.Region)
	setIf(v, "account_id", in.AccountID)
	setIf(v, "resource_id", in.ResourceID)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "external_id", in.ExternalID)
	return v
}

type ResourceUpdate struct {
	Name          *string       `json:"name" validate:"omitempty,min=1,max=255"`
	Slug          *string       `json:"slug" validate:"omitempty,min=1,max=100"`
	Description   *string       `json:"description"`
	ResourceType  *ResourceType `json:"resource_type" validate:"omitempty,oneof=ec2 virtual_machine logic_app storage_account container_instance kubernetes function_app load_balancer api_gateway cdn"`
	Status        *EntityStatus `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	CloudProvider *string       `json:"cloud_provider" validate:"omitempty,max=50"`
	Region        *string       `json:"region" validate:"omitempty,max=100"`
	AccountID     *string       `json:"account_id"`
	ResourceID    *string       `json:"resource_id"`
	OwnerTeamID   *uuid.UUID    `json:"owner_team_id"`
	Attributes    JSONObject    `json:"attributes"`
	Tags          JSONList      `json:"tags"`
	ExternalID    *string       `json:"external_id"`
}

func (in ResourceUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "resource_type", in.ResourceType)
	setIf(v, "status", in.Status)
	setIf(v, "cloud_provider", in.CloudProvider)
	setIf(v, "region", in.Region)
	setIf(v, "account_id", in.AccountID)
	setIf(v, "resource_id", in.ResourceID)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "external_id", in.ExternalID)
	if in.Attributes != nil {
		v["attributes"] = in.Attributes
	}
	if in.Tags != nil {
		v["tags"] = in.Tags
	}
	return v
}

func ResourceDefinition() *Definition[Resource] {
	return &Definition[Resource]{
		Kind:  audit.KindResource,
		Table: "resources",
		Columns: withStamps("id", "tenant_id", "name", "slug", "description", "resource_type", "status",
			"cloud_provider", "region", "account_id", "resource_id", "owner_team_id", "attributes", "tags", "external_id"),
		Mutable: []string{"name", "slug", "description", "resource_type", "status", "cloud_provider", "region",
			"account_id", "resource_id", "owner_team_id", "attributes", "tags", "external_id"},
		Filterable:   []string{"resource_type", "status", "cloud_provider", "region", "owner_team_id"},
		Sortable:     []string{"name", "slug", "status", "resource_type", "cloud_provider", "region", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Resource, error) {
			r := &Resource{}
			err := row.Scan(append([]interface{}{
				&r.ID, &r.TenantID, &r.Name, &r.Slug, &r.Description, &r.ResourceType, &r.Status,
				&r.CloudProvider, &r.Region, &r.AccountID, &r.ResourceID, &r.OwnerTeamID, &r.Attributes, &r.Tags, &r.ExternalID,
			}, r.Stamps.dest()...)...)
			return r, err
		},
		ID: func(r *Resource) uuid.UUID { return r.ID },
		Snapshot: func(r *Resource) map[string]interface{} {
			return map[string]interface{}{"name": r.Name, "slug": r.Slug, "resource_type": r.ResourceType, "status": r.Status}
		},
	}
}
