// Package api provides the HTTP REST API server for AppR.
//
// # Overview
//
// This package wires the catalog, user admin, audit log and authentication
// services onto a gorilla/mux router under /api/v1. Probes and Prometheus
// metrics are served at the root:
//
//	GET /health    liveness with version and environment
//	GET /ready     database and Redis checks, 503 when either fails
//	GET /metrics   Prometheus exposition
//
// # Architecture
//
// Handlers are organized by resource:
//
//   - Authentication: local login, refresh rotation, logout, /auth/me
//   - SSO: OIDC authorization code with PKCE and SAML 2.0 ACS
//   - Catalog: services, components, products, resources, repositories,
//     teams, people, incidents and scorecards share one generic CRUD handler
//   - Incidents: timeline entries and the resolve flow
//   - Scorecards: inline criteria on create and POST /criteria
//   - Users: tenant admin, including the reset-password request
//   - Audit logs: filtered, paginated listing
//
// # Access Control
//
// Protected routes run the bearer token Authenticator and then the rbac
// Guard for a (resource, action) permission. The tenant is always taken from
// the authenticated user, never from the request.
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		Config:  cfg,
//		Auth:    authService,
//		Users:   userService,
//		Catalog: api.NewCatalog(db, cache, auditWriter, metrics, cfg.Cache.ListTTL),
//	})
//	http.ListenAndServe(":8000", server.Handler())
//
// # Responses
//
// Items are wrapped as {"data": ...}; lists as {"data": [...], "meta":
// {total, page, per_page, total_pages}}. Errors are RFC 7807 problem
// documents written by httputil.WriteProblem.
package api
