// Package app wires configuration, storage, the PingFederate client, the
// refresh pipeline, the scheduler and the HTTP API into a runnable server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pfagent/internal/config"
	apperrors "pfagent/internal/errors"
	"pfagent/internal/infrastructure"
	"pfagent/internal/metrics"
	custommw "pfagent/internal/middleware"
	"pfagent/internal/notify"
	"pfagent/internal/pfclient"
	"pfagent/internal/scheduler"
	"pfagent/internal/services"
	"pfagent/internal/store"
	handlers "pfagent/internal/transport/http"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Application is the composed server: one service pipeline, one scheduler,
// one HTTP listener.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Router    *chi.Mux
	Server    *http.Server
	Service   *services.LicenseService
	Scheduler *scheduler.Scheduler

	mongo *store.MongoStores
}

// NewApplication loads configuration and builds the full dependency graph.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(ctx, cfg)
}

// NewApplicationWithConfig builds the application from an already loaded
// configuration.
func NewApplicationWithConfig(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("version", Version),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Int("port", cfg.Server.Port))

	inventory, err := config.LoadInventory(cfg.Inventory)
	if err != nil {
		return nil, err
	}
	logger.Info("inventory loaded", slog.Int("instances", len(inventory.Instances)))

	app := &Application{Config: cfg, Logger: logger}

	licenses, audits, err := app.openStores(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	client := pfclient.New(cfg.PingFed, logger)
	notifier := notify.New(cfg.Notify.SlackWebhook, logger)

	app.Service = services.NewLicenseService(inventory, licenses, audits, client, collector, logger)

	if cfg.Scheduler.Enabled {
		job := func(ctx context.Context) error {
			report, err := app.Service.RefreshAll(ctx)
			if err != nil {
				return err
			}
			app.notifyReport(ctx, notifier, report)
			return nil
		}
		sched, err := scheduler.New(cfg.Scheduler.RefreshAt, job, logger)
		if err != nil {
			return nil, err
		}
		app.Scheduler = sched
	}

	app.setupRouter(registry)
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// openStores builds the cache and audit stores for the configured backend.
func (a *Application) openStores(ctx context.Context) (store.LicenseStore, store.AuditStore, error) {
	licenses, audits, mongo, err := openStoresForConfig(ctx, a.Config.Storage)
	if err != nil {
		return nil, nil, err
	}
	a.mongo = mongo
	return licenses, audits, nil
}

func openStoresForConfig(ctx context.Context, cfg config.StorageConfig) (store.LicenseStore, store.AuditStore, *store.MongoStores, error) {
	switch cfg.Backend {
	case "mongo":
		stores, err := store.NewMongoStores(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, nil, err
		}
		return stores.Licenses, stores.Audits, stores, nil
	case "file":
		licenses, err := store.NewFileLicenseStore(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		audits, err := store.NewFileAuditStore(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return licenses, audits, nil, nil
	default:
		return nil, nil, nil, apperrors.NewConfigError("unknown storage backend: "+cfg.Backend, nil)
	}
}

// NewPipeline builds the license service without the HTTP server or the
// scheduler. One-shot CLI commands use it. The returned closer releases the
// storage backend.
func NewPipeline(ctx context.Context, cfg *config.Config) (*services.LicenseService, func(context.Context) error, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	inventory, err := config.LoadInventory(cfg.Inventory)
	if err != nil {
		return nil, nil, err
	}

	licenses, audits, mongo, err := openStoresForConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	client := pfclient.New(cfg.PingFed, logger)
	service := services.NewLicenseService(inventory, licenses, audits, client, nil, logger)

	closer := func(ctx context.Context) error {
		if mongo != nil {
			return mongo.Close(ctx)
		}
		return nil
	}
	return service, closer, nil
}

// notifyReport pushes alerts for every refreshed instance that is in a
// WARNING or EXPIRED state.
func (a *Application) notifyReport(ctx context.Context, notifier *notify.Notifier, report *services.RefreshReport) {
	if !notifier.Enabled() {
		return
	}
	for _, summary := range report.Succeeded {
		notifier.LicenseAlert(ctx, summary)
	}
}

func (a *Application) setupRouter(registry *prometheus.Registry) {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))

	healthHandler := handlers.NewHealthHandler(Version)
	r.Get("/healthz", healthHandler.Healthz)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Mount("/", handlers.NewLicenseHandler(a.Service, a.Logger).Routes())
	})

	a.Router = r
}

// Run starts the scheduler and the HTTP listener and blocks until the
// context is cancelled, then shuts both down.
func (a *Application) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	return g.Wait()
}

func (a *Application) shutdown() error {
	a.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if a.mongo != nil {
		if err := a.mongo.Close(shutdownCtx); err != nil {
			a.Logger.Error("mongo close error", slog.String("error", err.Error()))
		}
	}

	a.Logger.Info("shutdown complete")
	return nil
}
