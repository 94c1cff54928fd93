package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/user"
)

type routeRule struct {
	prefix string
	roles  []string // nil allows every role
}

var (
	allRoles       []string
	adminOnly      = []string{user.RoleAdmin}
	adminOrManager = []string{user.RoleAdmin, user.RoleManager}

	// routeRoles lists the roles allowed per route prefix. The longest matching prefix wins.
	routeRoles = []routeRule{
		{prefix: "/api/users", roles: adminOrManager},
		{prefix: "/api/invitations", roles: adminOrManager},
		{prefix: "/api/reports", roles: adminOrManager},
		{prefix: "/api/org/settings", roles: adminOnly},
		{prefix: "/api/jobs", roles: adminOnly},
		{prefix: "/api/teams", roles: allRoles},
		{prefix: "/api/objectives", roles: allRoles},
		{prefix: "/api/key-results", roles: allRoles},
		{prefix: "/api/checkins", roles: allRoles},
		{prefix: "/api/notifications", roles: allRoles},
		{prefix: "/api/me", roles: allRoles},
		{prefix: "/api/org", roles: allRoles},
	}
)

func matchesPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// allowedRoles returns the roles allowed on path; nil when any role is.
func allowedRoles(path string) []string {
	var best *routeRule
	for i, rule := range routeRoles {
		if matchesPrefix(path, rule.prefix) && (best == nil || len(rule.prefix) > len(best.prefix)) {
			best = &routeRoles[i]
		}
	}
	if best == nil {
		return nil
	}
	return best.roles
}

func rbacMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if roles := allowedRoles(ctx.Request().URL.Path); roles != nil && !core.StringInSlice(usr.Role, roles) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// requireRoles further restricts a route to roles.
func requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.HasRole(roles...) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
