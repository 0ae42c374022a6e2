package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/enricher/internal/auth"
	"github.com/octobees/leads-generator/enricher/internal/config"
	"github.com/octobees/leads-generator/enricher/internal/handler"
	middlewarepkg "github.com/octobees/leads-generator/enricher/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Leads   *handler.LeadsHandler
	Auth    *handler.AuthHandler
	Metrics http.Handler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", handlers.Leads.Health)
	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
	if handlers.Auth != nil {
		e.POST("/auth/token", handlers.Auth.Token)
	}

	secured := e.Group("")
	secured.Use(middlewarepkg.JWT(jwtManager))
	secured.Use(middlewarepkg.RequireRole(cfg.AuthEnabled(), auth.RoleAdmin, auth.RoleService))

	enrichLimit := middlewarepkg.RateLimiter(cfg.RateLimitEnrich)
	secured.POST("/enrich", handlers.Leads.Enrich, enrichLimit)
	secured.POST("/extract-single", handlers.Leads.ExtractSingle, enrichLimit)
	secured.POST("/dedupe", handlers.Leads.Dedupe)
	secured.GET("/businesses", handlers.Leads.List)
}
