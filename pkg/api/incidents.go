package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/catalog"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/rbac"
)

// IncidentHandlers serves the incident timeline and resolve flow
type IncidentHandlers struct {
	svc    *catalog.IncidentService
	access access
}

// NewIncidentHandlers creates new incident handlers
func NewIncidentHandlers(svc *catalog.IncidentService, a access) *IncidentHandlers {
	return &IncidentHandlers{svc: svc, access: a}
}

// RegisterRoutes registers the timeline and resolve routes
func (h *IncidentHandlers) RegisterRoutes(r *mux.Router) {
	r.Handle("/incidents/{id}/timeline", h.access.require(rbac.ResourceIncident, rbac.ActionRead, h.Timeline)).Methods(http.MethodGet)
	r.Handle("/incidents/{id}/timeline", h.access.require(rbac.ResourceIncident, rbac.ActionUpdate, h.AddTimelineEntry)).Methods(http.MethodPost)
	r.Handle("/incidents/{id}/resolve", h.access.require(rbac.ResourceIncident, rbac.ActionUpdate, h.Resolve)).Methods(http.MethodPost)
}

// Timeline handles GET /incidents/{id}/timeline
func (h *IncidentHandlers) Timeline(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	entries, err := h.svc.Timeline(r.Context(), user.TenantID, id)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, entries)
}

// AddTimelineEntry handles POST /incidents/{id}/timeline
func (h *IncidentHandlers) AddTimelineEntry(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	var in catalog.TimelineEntryCreate
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	entry, err := h.svc.AddTimelineEntry(r.Context(), user.TenantID, id, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, entry)
}

// Resolve handles POST /incidents/{id}/resolve. The body is optional.
func (h *IncidentHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	var in catalog.ResolveRequest
	if hasBody(r) {
		if err := httputil.ParseJSON(r, &in); err != nil {
			httputil.WriteProblem(w, r, err)
			return
		}
	}

	incident, err := h.svc.Resolve(r.Context(), user.TenantID, id, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, incident)
}

// ScorecardHandlers serves scorecard criteria
type ScorecardHandlers struct {
	svc    *catalog.ScorecardService
	access access
}

// NewScorecardHandlers creates new scorecard handlers
func NewScorecardHandlers(svc *catalog.ScorecardService, a access) *ScorecardHandlers {
	return &ScorecardHandlers{svc: svc, access: a}
}

// RegisterRoutes registers the criteria route
func (h *ScorecardHandlers) RegisterRoutes(r *mux.Router) {
	r.Handle("/scorecards/{id}/criteria", h.access.require(rbac.ResourceScorecard, rbac.ActionUpdate, h.AddCriterion)).Methods(http.MethodPost)
}

// AddCriterion handles POST /scorecards/{id}/criteria
func (h *ScorecardHandlers) AddCriterion(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	var in catalog.CriterionCreate
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	criterion, err := h.svc.AddCriterion(r.Context(), user.TenantID, id, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, criterion)
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
