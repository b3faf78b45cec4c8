package api

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/audit"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/middleware"
	"github.com/platinummonkey/appr/pkg/observability"
	"github.com/platinummonkey/appr/pkg/rbac"
	"github.com/platinummonkey/appr/pkg/sso"
	"github.com/platinummonkey/appr/pkg/users"
)

// APIPrefix is the base path of every versioned route
const APIPrefix = "/api/v1"

const maxBodyBytes = 1 << 20

// Deps carries everything the router dispatches to. Gatherer and Health may
// be nil, in which case /metrics and the probes are not mounted.
type Deps struct {
	Config    *config.Config
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Health    *observability.HealthChecker
	Auth      *auth.Service
	OIDC      *sso.OIDCService
	SAML      *sso.SAMLService
	Users     *users.Service
	Catalog   Catalog
	AuditLogs *audit.Store
	Policy    rbac.Policy
}

// Server represents our API server
type Server struct {
	router *mux.Router
	deps   Deps
	access access
}

// NewServer creates a new API server with every route registered
func NewServer(deps Deps) *Server {
	if deps.Policy == nil {
		deps.Policy = rbac.DefaultPolicy()
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		access: access{
			authn: middleware.NewAuthenticator(deps.Auth.Tokens(), deps.Auth),
			guard: rbac.NewGuard(deps.Policy),
		},
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteProblem(w, r, apperrors.NotFound("Not Found"))
	})

	if s.deps.Health != nil {
		s.router.HandleFunc("/health", s.deps.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/ready", s.deps.Health.Readiness).Methods(http.MethodGet)
	}
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.deps.Gatherer)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()

	registrars := []RouteRegistrar{
		NewAuthHandlers(s.deps.Auth, s.deps.OIDC, s.deps.SAML, s.deps.Config, s.access),
		NewUserHandlers(s.deps.Users, s.access),
		NewAuditHandlers(s.deps.AuditLogs, s.access),
	}
	registrars = append(registrars, s.deps.Catalog.handlers(s.access)...)
	for _, reg := range registrars {
		reg.RegisterRoutes(api)
	}
}

// ServeHTTP implements http.Handler without the outer middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the full middleware chain: tracing,
// panic recovery, request id, client info, tenant binding, request logging,
// CORS and body limits.
func (s *Server) Handler() http.Handler {
	var corsOrigins []string
	if s.deps.Config != nil {
		corsOrigins = s.deps.Config.Server.CORSOrigins
	}
	logger := s.deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, observability.FormatJSON, os.Stdout)
	}

	chain := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.ClientInfoMiddleware,
		middleware.TenantMiddleware(s.deps.Auth.Tokens()),
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware(corsOrigins),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	return otelhttp.NewHandler(chain(s.router), "appr-api")
}

// Router exposes the underlying router for tests and extra registrations
func (s *Server) Router() *mux.Router {
	return s.router
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar under /api/v1
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router.PathPrefix(APIPrefix).Subrouter())
}

// access wraps handlers with authentication and a role guard
type access struct {
	authn *middleware.Authenticator
	guard *rbac.Guard
}

func (a access) require(resource rbac.Resource, action rbac.Action, fn http.HandlerFunc) http.Handler {
	return a.authn.Handler(a.guard.Require(resource, action)(fn))
}

func (a access) authenticated(fn http.HandlerFunc) http.Handler {
	return a.authn.Wrap(fn)
}
