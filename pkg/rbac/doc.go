// Package rbac provides role-based access control for the AppR API.
//
// # Overview
//
// Access is decided per tenant-wide role. Requirements are declared as data:
// a Policy maps each Permission (resource + action) to the roles allowed to
// perform it, and a single Guard middleware enforces it.
//
// # Resources and Actions
//
// Resources are the catalog entity types plus users and the audit log:
//
//	ResourceService, ResourceComponent, ResourceProduct, ResourceResource,
//	ResourceRepository, ResourceTeam, ResourcePerson, ResourceIncident,
//	ResourceScorecard, ResourceUser, ResourceAuditLog
//
// Actions are list, read, create, update and delete:
//
//	permission := rbac.Permission{Resource: rbac.ResourceService, Action: rbac.ActionDelete}
//	// "service:delete"
//
// # Default Policy
//
//	list            viewer, editor, admin
//	read            any authenticated role
//	create, update  editor, admin
//	delete          admin
//	user:*          admin
//	audit_log:list  viewer, editor, admin
//
// Permissions missing from the policy are denied.
//
// # Usage
//
//	guard := rbac.NewGuard(rbac.DefaultPolicy())
//	router.Handle("/api/v1/services", authn.Handler(
//		guard.Require(rbac.ResourceService, rbac.ActionCreate)(createHandler),
//	)).Methods(http.MethodPost)
//
// The guard reads the user stored by middleware.Authenticator, so it must
// run after it. A denied request gets 403 with the required roles in the
// detail.
package rbac
