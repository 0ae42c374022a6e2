package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// RequireRole enforces that the authenticated request carries one of roles.
// It is a no-op when authentication is disabled.
func RequireRole(enabled bool, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !enabled {
			return next
		}
		return func(c echo.Context) error {
			value, ok := c.Get(ContextKeyClientRole).(string)
			if !ok || value == "" {
				return c.JSON(http.StatusForbidden, errorBody("missing role"))
			}
			if !slices.Contains(roles, value) {
				return c.JSON(http.StatusForbidden, errorBody("insufficient permissions"))
			}
			return next(c)
		}
	}
}
