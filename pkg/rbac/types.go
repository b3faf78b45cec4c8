package rbac

import (
	"github.com/platinummonkey/appr/pkg/auth"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceService    Resource = "service"
	ResourceComponent  Resource = "component"
	ResourceProduct    Resource = "product"
	ResourceResource   Resource = "resource"
	ResourceRepository Resource = "repository"
	ResourceTeam       Resource = "team"
	ResourcePerson     Resource = "person"
	ResourceIncident   Resource = "incident"
	ResourceScorecard  Resource = "scorecard"
	ResourceUser       Resource = "user"
	ResourceAuditLog   Resource = "audit_log"
)

// CatalogResources are the tenant-scoped catalog entity types
var CatalogResources = []Resource{
	ResourceService, ResourceComponent, ResourceProduct, ResourceResource, ResourceRepository,
	ResourceTeam, ResourcePerson, ResourceIncident, ResourceScorecard,
}

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission represents a specific permission (resource + action)
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// String returns a string representation of the permission
func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Policy maps each permission to the roles allowed to exercise it
type Policy map[Permission][]auth.Role

var (
	readers = []auth.Role{auth.RoleViewer, auth.RoleEditor, auth.RoleAdmin}
	anyRole = []auth.Role{auth.RoleViewer, auth.RoleEditor, auth.RoleAdmin, auth.RoleIncidentCommander}
	editors = []auth.Role{auth.RoleEditor, auth.RoleAdmin}
	admins  = []auth.Role{auth.RoleAdmin}
)

// DefaultPolicy returns the built-in role requirements
func DefaultPolicy() Policy {
	p := Policy{}
	for _, r := range CatalogResources {
		p[Permission{r, ActionList}] = readers
		p[Permission{r, ActionRead}] = anyRole
		p[Permission{r, ActionCreate}] = editors
		p[Permission{r, ActionUpdate}] = editors
		p[Permission{r, ActionDelete}] = admins
	}
	for _, a := range []Action{ActionList, ActionRead, ActionCreate, ActionUpdate, ActionDelete} {
		p[Permission{ResourceUser, a}] = admins
	}
	p[Permission{ResourceAuditLog, ActionList}] = readers
	return p
}

// Roles returns the roles allowed to exercise perm
func (p Policy) Roles(perm Permission) []auth.Role {
	return p[perm]
}

// Allows reports whether role may exercise perm. Unknown permissions are
// denied.
func (p Policy) Allows(role auth.Role, perm Permission) bool {
	return hasRole(p[perm], role)
}

func hasRole(roles []auth.Role, role auth.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
