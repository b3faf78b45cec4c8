package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/catalog"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/rbac"
	"github.com/platinummonkey/appr/pkg/storage"
)

// Catalog holds one service per catalog entity type
type Catalog struct {
	Services     *catalog.CachedService[catalog.Service]
	Components   *catalog.CachedService[catalog.Component]
	Products     *catalog.CachedService[catalog.Product]
	Resources    *catalog.CachedService[catalog.Resource]
	Repositories *catalog.CachedService[catalog.CodeRepository]
	Teams        *catalog.CachedService[catalog.Team]
	People       *catalog.CachedService[catalog.Person]
	Incidents    *catalog.IncidentService
	Scorecards   *catalog.ScorecardService
}

// NewCatalog wires every catalog service to the same database, cache and
// audit writer
func NewCatalog(db storage.DB, cache storage.Cache, auditWriter *audit.Writer, metrics *observability.Metrics, ttl time.Duration) Catalog {
	return Catalog{
		Services:     catalog.NewCachedService(db, catalog.ServiceDefinition(), cache, auditWriter, metrics, ttl),
		Components:   catalog.NewCachedService(db, catalog.ComponentDefinition(), cache, auditWriter, metrics, ttl),
		Products:     catalog.NewCachedService(db, catalog.ProductDefinition(), cache, auditWriter, metrics, ttl),
		Resources:    catalog.NewCachedService(db, catalog.ResourceDefinition(), cache, auditWriter, metrics, ttl),
		Repositories: catalog.NewCachedService(db, catalog.RepositoryDefinition(), cache, auditWriter, metrics, ttl),
		Teams:        catalog.NewCachedService(db, catalog.TeamDefinition(), cache, auditWriter, metrics, ttl),
		People:       catalog.NewCachedService(db, catalog.PersonDefinition(), cache, auditWriter, metrics, ttl),
		Incidents:    catalog.NewIncidentService(db, cache, auditWriter, metrics, ttl),
		Scorecards:   catalog.NewScorecardService(db, cache, auditWriter, metrics, ttl),
	}
}

func (c Catalog) handlers(a access) []RouteRegistrar {
	var regs []RouteRegistrar
	if c.Services != nil {
		regs = append(regs, newEntityHandlers[catalog.Service, catalog.ServiceCreate, catalog.ServiceUpdate](
			"/services", rbac.ResourceService, c.Services, a))
	}
	if c.Components != nil {
		regs = append(regs, newEntityHandlers[catalog.Component, catalog.ComponentCreate, catalog.ComponentUpdate](
			"/components", rbac.ResourceComponent, c.Components, a))
	}
	if c.Products != nil {
		regs = append(regs, newEntityHandlers[catalog.Product, catalog.ProductCreate, catalog.ProductUpdate](
			"/products", rbac.ResourceProduct, c.Products, a))
	}
	if c.Resources != nil {
		regs = append(regs, newEntityHandlers[catalog.Resource, catalog.ResourceCreate, catalog.ResourceUpdate](
			"/resources", rbac.ResourceResource, c.Resources, a))
	}
	if c.Repositories != nil {
		regs = append(regs, newEntityHandlers[catalog.CodeRepository, catalog.RepositoryCreate, catalog.RepositoryUpdate](
			"/repositories", rbac.ResourceRepository, c.Repositories, a))
	}
	if c.Teams != nil {
		regs = append(regs, newEntityHandlers[catalog.Team, catalog.TeamCreate, catalog.TeamUpdate](
			"/teams", rbac.ResourceTeam, c.Teams, a))
	}
	if c.People != nil {
		regs = append(regs, newEntityHandlers[catalog.Person, catalog.PersonCreate, catalog.PersonUpdate](
			"/people", rbac.ResourcePerson, c.People, a))
	}
	if c.Incidents != nil {
		regs = append(regs,
			newEntityHandlers[catalog.Incident, catalog.IncidentCreate, catalog.IncidentUpdate](
				"/incidents", rbac.ResourceIncident, c.Incidents.CachedService, a),
			NewIncidentHandlers(c.Incidents, a),
		)
	}
	if c.Scorecards != nil {
		scorecards := newEntityHandlers[catalog.Scorecard, catalog.ScorecardCreate, catalog.ScorecardUpdate](
			"/scorecards", rbac.ResourceScorecard, c.Scorecards.CachedService, a)
		scorecards.create = c.Scorecards.CreateWithCriteria
		scorecards.get = c.Scorecards.GetWithCriteria
		regs = append(regs, scorecards, NewScorecardHandlers(c.Scorecards, a))
	}
	return regs
}

// Input is a create or update payload that maps onto table columns
type Input interface {
	Values() catalog.Values
}

// EntityHandlers serves the five CRUD routes of one catalog entity type
type EntityHandlers[T any, C Input, U Input] struct {
	path     string
	resource rbac.Resource
	svc      *catalog.CachedService[T]
	access   access

	create func(ctx context.Context, tenantID, actorID uuid.UUID, in C) (*T, error)
	get    func(ctx context.Context, tenantID, id uuid.UUID) (*T, error)
}

func newEntityHandlers[T any, C Input, U Input](path string, resource rbac.Resource, svc *catalog.CachedService[T], a access) *EntityHandlers[T, C, U] {
	h := &EntityHandlers[T, C, U]{path: path, resource: resource, svc: svc, access: a}
	h.create = func(ctx context.Context, tenantID, actorID uuid.UUID, in C) (*T, error) {
		return svc.Create(ctx, tenantID, actorID, in.Values())
	}
	h.get = svc.Get
	return h
}

// RegisterRoutes registers the list, create, get, update and delete routes
func (h *EntityHandlers[T, C, U]) RegisterRoutes(r *mux.Router) {
	item := h.path + "/{id}"
	r.Handle(h.path, h.access.require(h.resource, rbac.ActionList, h.List)).Methods(http.MethodGet)
	r.Handle(h.path, h.access.require(h.resource, rbac.ActionCreate, h.Create)).Methods(http.MethodPost)
	r.Handle(item, h.access.require(h.resource, rbac.ActionRead, h.Get)).Methods(http.MethodGet)
	r.Handle(item, h.access.require(h.resource, rbac.ActionUpdate, h.Update)).Methods(http.MethodPut)
	r.Handle(item, h.access.require(h.resource, rbac.ActionDelete, h.Delete)).Methods(http.MethodDelete)
}

// List handles GET /{entities}. Every filterable column of the entity may
// be passed as an exact-match query parameter.
func (h *EntityHandlers[T, C, U]) List(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	p, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	params := listParams(p)
	for _, column := range h.svc.Repository().Definition().Filterable {
		if v := r.URL.Query().Get(column); v != "" {
			params.Filters[column] = v
		}
	}

	page, err := h.svc.List(r.Context(), user.TenantID, params)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, page)
}

// Create handles POST /{entities}
func (h *EntityHandlers[T, C, U]) Create(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	var in C
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	created, err := h.create(r.Context(), user.TenantID, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, created)
}

// Get handles GET /{entities}/{id}
func (h *EntityHandlers[T, C, U]) Get(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	entity, err := h.get(r.Context(), user.TenantID, id)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, entity)
}

// Update handles PUT /{entities}/{id}
func (h *EntityHandlers[T, C, U]) Update(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	var in U
	nulls, err := httputil.ParseJSONNulls(r, &in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	values := in.Values()
	h.svc.Repository().Definition().ClearNulls(values, nulls)

	updated, err := h.svc.Update(r.Context(), user.TenantID, id, user.ID, values)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, updated)
}

// Delete handles DELETE /{entities}/{id}
func (h *EntityHandlers[T, C, U]) Delete(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), user.TenantID, id, user.ID); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func listParams(p httputil.Pagination) catalog.ListParams {
	return catalog.ListParams{
		Page:    p.Page,
		PerPage: p.PerPage,
		Search:  p.Search,
		Sort:    p.Sort,
		Order:   p.Order,
		Filters: map[string]interface{}{},
	}
}
