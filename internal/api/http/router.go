package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/askew/internal/api/http/handlers"
	"github.com/spec-kit/askew/internal/gateway"
	"github.com/spec-kit/askew/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Path     string
	Health   *handlers.HealthHandler
	Resource *handlers.ResourceHandler
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes of a resource service.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get(cfg.Path, cfg.Resource.List)
	app.Post(cfg.Path, cfg.Resource.Create)

	registerMetrics(app, cfg.Metrics)
}

func registerMetrics(app *fiber.App, metrics *observability.Metrics) {
	if metrics == nil {
		return
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}

// GatewayRouteConfig bundles dependencies for gateway route registration.
type GatewayRouteConfig struct {
	Dashboard *handlers.DashboardHandler
	Proxy     *gateway.Proxy
	Metrics   *observability.Metrics
}

// RegisterGatewayRoutes wires the gateway's own endpoints and the proxied
// service routes.
func RegisterGatewayRoutes(app *fiber.App, cfg GatewayRouteConfig) {
	app.Get("/health", cfg.Dashboard.Health)

	api := app.Group("/api")
	dashboard := api.Group("/dashboard")
	dashboard.Get("/", cfg.Dashboard.View)
	dashboard.Post("/refresh", cfg.Dashboard.Refresh)
	dashboard.Post("/users", cfg.Dashboard.CreateUser)
	dashboard.Post("/projects", cfg.Dashboard.CreateProject)

	cfg.Proxy.Register(app)

	registerMetrics(app, cfg.Metrics)
}
