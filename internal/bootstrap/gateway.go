package bootstrap

import (
	"log"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/askew/internal/api/http"
	"github.com/spec-kit/askew/internal/api/http/handlers"
	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/gateway"
	"github.com/spec-kit/askew/internal/observability"
)

// RunGateway starts the gateway process and blocks until a shutdown signal.
func RunGateway(defaultPort string) {
	cfg, err := config.Load(gatewayDefaults(defaultPort))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App.Name, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics(cfg.App.Name)
	timeout := cfg.Gateway.UpstreamTimeout()

	users := gateway.NewServiceClient(gateway.ClientOptions{
		Name:     "users",
		BaseURL:  cfg.Gateway.UsersURL,
		Resource: domain.UsersSchema.Path(),
		Timeout:  timeout,
		Metrics:  metrics,
		Logger:   logger,
	})
	projects := gateway.NewServiceClient(gateway.ClientOptions{
		Name:     "projects",
		BaseURL:  cfg.Gateway.ProjectsURL,
		Resource: domain.ProjectsSchema.Path(),
		Timeout:  timeout,
		Metrics:  metrics,
		Logger:   logger,
	})

	app := NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterGatewayRoutes(app, httptransport.GatewayRouteConfig{
		Dashboard: handlers.NewDashboardHandler(gateway.NewDashboard(users, projects)),
		Proxy: gateway.NewProxy(
			gateway.DefaultRoutes(cfg.Gateway.UsersURL, cfg.Gateway.ProjectsURL),
			timeout, metrics, logger,
		),
		Metrics: metrics,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("users", cfg.Gateway.UsersURL),
			zap.String("projects", cfg.Gateway.ProjectsURL))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// gatewayDefaults sets no request deadline: dashboard refreshes are bounded
// only by the upstream transport.
func gatewayDefaults(port string) config.Defaults {
	return config.Defaults{Name: "gateway", Port: port}
}
