package rbac

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/httputil"
	"github.com/platinummonkey/appr/pkg/middleware"
	"github.com/platinummonkey/appr/pkg/observability"
)

// Guard enforces a Policy on authenticated requests
type Guard struct {
	policy Policy
}

// NewGuard creates a new guard
func NewGuard(policy Policy) *Guard {
	return &Guard{policy: policy}
}

// Policy returns the policy enforced by the guard
func (g *Guard) Policy() Policy {
	return g.policy
}

// Require creates middleware that admits callers whose role the policy
// allows to perform action on resource. Permissions missing from the policy
// deny every caller.
func (g *Guard) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	perm := Permission{Resource: resource, Action: action}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := middleware.CurrentUser(r.Context())
			if !ok {
				httputil.WriteProblem(w, r, apperrors.Unauthenticated("Not authenticated"))
				return
			}
			if !g.policy.Allows(user.Role, perm) {
				observability.FromContext(r.Context()).WithFields(map[string]interface{}{
					"role":     string(user.Role),
					"resource": string(resource),
					"action":   string(action),
				}).Info("request denied by role guard")
				httputil.WriteProblem(w, r, apperrors.Forbidden(InsufficientPermissions(g.policy.Roles(perm))))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InsufficientPermissions formats the 403 detail listing the required roles
func InsufficientPermissions(roles []auth.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return fmt.Sprintf("Insufficient permissions. Required role(s): %s", strings.Join(names, ", "))
}
