package bootstrap

import (
	"context"
	"log"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/askew/internal/api/http"
	"github.com/spec-kit/askew/internal/api/http/handlers"
	"github.com/spec-kit/askew/internal/config"
	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/events"
	"github.com/spec-kit/askew/internal/observability"
	"github.com/spec-kit/askew/internal/service"
	"github.com/spec-kit/askew/internal/worker"
)

// RunResourceService starts one resource service process and blocks until a
// shutdown signal. The HTTP server listens right away and reports "starting"
// until the store is connected; a failed store startup exits the process.
func RunResourceService(schema domain.Schema, defaultPort string) {
	cfg, err := config.Load(resourceDefaults(schema, defaultPort))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App.Name, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := NewRecordRepository(cfg, schema, logger)
	if err != nil {
		logger.Fatal("failed to build repository", zap.Error(err))
	}
	defer repo.Close()

	metrics := observability.NewMetrics(cfg.App.Name)
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	svc := service.NewResourceService(schema, service.ResourceDependencies{
		Repo:       repo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	app := NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Path:     schema.Path(),
		Health:   handlers.NewHealthHandler(cfg.App.Version, svc),
		Resource: handlers.NewResourceHandler(svc),
		Metrics:  metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	go func() {
		if err := svc.Start(ctx); err != nil {
			logger.Fatal("store startup failed", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func resourceDefaults(schema domain.Schema, port string) config.Defaults {
	return config.Defaults{
		Name:                  schema.Service,
		Port:                  port,
		RequestTimeoutSeconds: config.DefaultRequestTimeoutSeconds,
	}
}
