package catalog

import (
	"github.com/google/uuid"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Service is a deployable unit owned by a team
type Service struct {
	ID                 uuid.UUID         `json:"id"`
	TenantID           uuid.UUID         `json:"tenant_id"`
	Name               string            `json:"name"`
	Slug               string            `json:"slug"`
	Description        *string           `json:"description"`
	ServiceType        ServiceType       `json:"service_type"`
	Status             EntityStatus      `json:"status"`
	OperationalStatus  OperationalStatus `json:"operational_status"`
	OwnerTeamID        *uuid.UUID        `json:"owner_team_id"`
	OwnerPersonID      *uuid.UUID        `json:"owner_person_id"`
	Tier               *int              `json:"tier"`
	PagerDutyServiceID *string           `json:"pagerduty_service_id"`
	DatadogServiceName *string           `json:"datadog_service_name"`
	RunbookURL         *string           `json:"runbook_url"`
	DashboardURL       *string           `json:"dashboard_url"`
	SLOTarget          *float64          `json:"slo_target"`
	Attributes         JSONObject        `json:"attributes"`
	Tags               JSONList          `json:"tags"`
	ExternalID         *string           `json:"external_id"`
	Stamps
}

// ServiceCreate is the body of POST /services
type ServiceCreate struct {
	Name               string            `json:"name" validate:"required,min=1,max=255"`
	Slug               string            `json:"slug" validate:"required,min=1,max=100"`
	Description        *string           `json:"description"`
	ServiceType        ServiceType       `json:"service_type" validate:"omitempty,oneof=api web_application database message_queue cache infrastructure"`
	Status             EntityStatus      `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OperationalStatus  OperationalStatus `json:"operational_status" validate:"omitempty,oneof=operational degraded outage"`
	OwnerTeamID        *uuid.UUID        `json:"owner_team_id"`
	OwnerPersonID      *uuid.UUID        `json:"owner_person_id"`
	Tier               *int              `json:"tier"`
	PagerDutyServiceID *string           `json:"pagerduty_service_id"`
	DatadogServiceName *string           `json:"datadog_service_name"`
	RunbookURL         *string           `json:"runbook_url" validate:"omitempty,url"`
	DashboardURL       *string           `json:"dashboard_url" validate:"omitempty,url"`
	SLOTarget          *float64          `json:"slo_target" validate:"omitempty,gte=0,lte=100"`
	Attributes         JSONObject        `json:"attributes"`
	Tags               JSONList          `json:"tags"`
	ExternalID         *string           `json:"external_id"`
}

// Values applies defaults and returns the insert columns
func (in ServiceCreate) Values() Values {
	v := Values{
		"name":               in.Name,
		"slug":               in.Slug,
		"service_type":       orDefault(in.ServiceType, ServiceTypeAPI),
		"status":             orDefault(in.Status, StatusActive),
		"operational_status": orDefault(in.OperationalStatus, Operational),
		"attributes":         in.Attributes,
		"tags":               in.Tags,
	}
	setIf(v, "description", in.Description)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "tier", in.Tier)
	setIf(v, "pagerduty_service_id", in.PagerDutyServiceID)
	setIf(v, "datadog_service_name", in.DatadogServiceName)
	setIf(v, "runbook_url", in.RunbookURL)
	setIf(v, "dashboard_url", in.DashboardURL)
	setIf(v, "slo_target", in.SLOTarget)
	setIf(v, "external_id", in.ExternalID)
	return v
}

// ServiceUpdate is the body of PUT /services/{id}; absent fields are kept
type ServiceUpdate struct {
	Name               *string            `json:"name" validate:"omitempty,min=1,max=255"`
	Slug               *string            `json:"slug" validate:"omitempty,min=1,max=100"`
	Description        *string            `json:"description"`
	ServiceType        *ServiceType       `json:"service_type" validate:"omitempty,oneof=api web_application database message_queue cache infrastructure"`
	Status             *EntityStatus      `json:"status" validate:"omitempty,oneof=active planned maintenance deprecated"`
	OperationalStatus  *OperationalStatus `json:"operational_status" validate:"omitempty,oneof=operational degraded outage"`
	OwnerTeamID        *uuid.UUID         `json:"owner_team_id"`
	OwnerPersonID      *uuid.UUID         `json:"owner_person_id"`
	Tier               *int               `json:"tier"`
	PagerDutyServiceID *string            `json:"pagerduty_service_id"`
	DatadogServiceName *string            `json:"datadog_service_name"`
	RunbookURL         *string            `json:"runbook_url" validate:"omitempty,url"`
	DashboardURL       *string            `json:"dashboard_url" validate:"omitempty,url"`
	SLOTarget          *float64           `json:"slo_target" validate:"omitempty,gte=0,lte=100"`
	Attributes         JSONObject         `json:"attributes"`
	Tags               JSONList           `json:"tags"`
	ExternalID         *string            `json:"external_id"`
}

// Values returns only the columns present in the request
func (in ServiceUpdate) Values() Values {
	v := Values{}
	setIf(v, "name", in.Name)
	setIf(v, "slug", in.Slug)
	setIf(v, "description", in.Description)
	setIf(v, "service_type", in.ServiceType)
	setIf(v, "status", in.Status)
	setIf(v, "operational_status", in.OperationalStatus)
	setIf(v, "owner_team_id", in.OwnerTeamID)
	setIf(v, "owner_person_id", in.OwnerPersonID)
	setIf(v, "tier", in.Tier)
	setIf(v, "pagerduty_service_id", in.PagerDutyServiceID)
	setIf(v, "datadog_service_name", in.DatadogServiceName)
	setIf(v, "runbook_url", in.RunbookURL)
	setIf(v, "dashboard_url", in.DashboardURL)
	setIf(v, "slo_target", in.SLOTarget)
	setIf(v, "external_id", in.ExternalID)
	if in.Attributes != nil {
		v["attributes"] = in.Attributes
	}
	if in.Tags != nil {
		v["tags"] = in.Tags
	}
	return v
}

// ServiceDefinition maps Service onto the services table
func ServiceDefinition() *Definition[Service] {
	return &Definition[Service]{
		Kind:  audit.KindService,
		Table: "services",
		Columns: withStamps("id", "tenant_id", "name", "slug", "description", "service_type", "status",
			"operational_status", "owner_team_id", "owner_person_id", "tier", "pagerduty_service_id",
			"datadog_service_name", "runbook_url", "dashboard_url", "slo_target", "attributes", "tags", "external_id"),
		Mutable: []string{"name", "slug", "description", "service_type", "status", "operational_status",
			"owner_team_id", "owner_person_id", "tier", "pagerduty_service_id", "datadog_service_name",
			"runbook_url", "dashboard_url", "slo_target", "attributes", "tags", "external_id"},
		Filterable:   []string{"service_type", "status", "operational_status", "owner_team_id", "owner_person_id", "tier"},
		Sortable:     []string{"name", "slug", "status", "service_type", "tier", "updated_at"},
		SearchColumn: "name",
		UniqueField:  "slug",
		Scan: func(row storage.RowScanner) (*Service, error) {
			s := &Service{}
			err := row.Scan(append([]interface{}{
				&s.ID, &s.TenantID, &s.Name, &s.Slug, &s.Description, &s.ServiceType, &s.Status,
				&s.OperationalStatus, &s.OwnerTeamID, &s.OwnerPersonID, &s.Tier, &s.PagerDutyServiceID,
				&s.DatadogServiceName, &s.RunbookURL, &s.DashboardURL, &s.SLOTarget, &s.Attributes, &s.Tags, &s.ExternalID,
			}, s.Stamps.dest()...)...)
			return s, err
		},
		ID: func(s *Service) uuid.UUID { return s.ID },
		Snapshot: func(s *Service) map[string]interface{} {
			return map[string]interface{}{
				"name":               s.Name,
				"slug":               s.Slug,
				"service_type":       s.ServiceType,
				"status":             s.Status,
				"operational_status": s.OperationalStatus,
			}
		},
	}
}
