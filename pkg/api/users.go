package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/rbac"
	"github.com/platinummonkey/appr/pkg/users"
)

// UserHandlers serves the tenant user admin routes
type UserHandlers struct {
	svc    *users.Service
	access access
}

// NewUserHandlers creates new user handlers
func NewUserHandlers(svc *users.Service, a access) *UserHandlers {
	return &UserHandlers{svc: svc, access: a}
}

// RegisterRoutes registers all user routes
func (h *UserHandlers) RegisterRoutes(r *mux.Router) {
	if h.svc == nil {
		return
	}
	r.Handle("/users", h.access.require(rbac.ResourceUser, rbac.ActionList, h.List)).Methods(http.MethodGet)
	r.Handle("/users", h.access.require(rbac.ResourceUser, rbac.ActionCreate, h.Create)).Methods(http.MethodPost)
	r.Handle("/users/{id}", h.access.require(rbac.ResourceUser, rbac.ActionRead, h.Get)).Methods(http.MethodGet)
	r.Handle("/users/{id}", h.access.require(rbac.ResourceUser, rbac.ActionUpdate, h.Update)).Methods(http.MethodPut)
	r.Handle("/users/{id}", h.access.require(rbac.ResourceUser, rbac.ActionDelete, h.Delete)).Methods(http.MethodDelete)
	r.Handle("/users/{id}/reset-password", h.access.require(rbac.ResourceUser, rbac.ActionUpdate, h.ResetPassword)).Methods(http.MethodPost)
}

// List handles GET /users
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
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

// Create handles POST /users
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	var in users.UserCreate
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	created, err := h.svc.Create(r.Context(), user.TenantID, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, created)
}

// Get handles GET /users/{id}
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	found, err := h.svc.Get(r.Context(), user.TenantID, id)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, found)
}

// Update handles PUT /users/{id}
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	var in users.UserUpdate
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	updated, err := h.svc.Update(r.Context(), user.TenantID, id, user.ID, in)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteData(w, updated)
}

// Delete handles DELETE /users/{id}
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
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

// ResetPassword handles POST /users/{id}/reset-password
func (h *UserHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	id, err := httputil.ParsePathUUID(r, "id")
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), user.TenantID, id, user.ID); err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteMessage(w, http.StatusAccepted, users.ResetQueuedMessage)
}
