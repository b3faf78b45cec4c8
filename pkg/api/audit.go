package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/catalog"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/rbac"
)

// AuditHandlers serves the read-only audit log
type AuditHandlers struct {
	store  *audit.Store
	access access
}

// NewAuditHandlers creates new audit log handlers
func NewAuditHandlers(store *audit.Store, a access) *AuditHandlers {
	return &AuditHandlers{store: store, access: a}
}

// RegisterRoutes registers the audit log route
func (h *AuditHandlers) RegisterRoutes(r *mux.Router) {
	if h.store == nil {
		return
	}
	r.Handle("/audit-logs", h.access.require(rbac.ResourceAuditLog, rbac.ActionList, h.List)).Methods(http.MethodGet)
}

// List handles GET /audit-logs. Supported filters: entity_type, entity_id,
// actor_id, event_type, from and to (RFC 3339).
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	user := principal(r)
	p, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}

	records, total, err := h.store.List(r.Context(), user.TenantID, filter, p.PerPage, p.Offset())
	if err != nil {
		httputil.WriteProblem(w, r, err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, catalog.Page[audit.Record]{
		Data: records,
		Meta: httputil.NewPageMeta(total, p.Page, p.PerPage),
	})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	filter := audit.Filter{
		EntityType: httputil.ParseQueryString(r, "entity_type", ""),
		EventType:  httputil.ParseQueryString(r, "event_type", ""),
	}
	var err error
	if filter.EntityID, err = httputil.ParseQueryUUID(r, "entity_id"); err != nil {
		return filter, err
	}
	if filter.ActorID, err = httputil.ParseQueryUUID(r, "actor_id"); err != nil {
		return filter, err
	}
	if filter.From, err = parseQueryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseQueryTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.Validation(apperrors.FieldError{
			Loc:  []string{"query", key},
			Msg:  "Input should be a valid datetime",
			Type: "datetime_parsing",
		})
	}
	return &t, nil
}
