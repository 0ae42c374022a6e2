package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/octobees/leads-generator/enricher/internal/auth"
)

// JWT validates bearer tokens and stores client metadata in the request
// context. Without a configured secret every request passes through.
func JWT(manager *authpkg.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !manager.Enabled() {
			return next
		}
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, errorBody("missing authorization header"))
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				return c.JSON(http.StatusUnauthorized, errorBody("invalid authorization header"))
			}

			claims, err := manager.ParseToken(strings.TrimSpace(token))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorBody("invalid token"))
			}

			c.Set(ContextKeyClientID, claims.Subject)
			c.Set(ContextKeyClientRole, claims.Role)

			return next(c)
		}
	}
}
