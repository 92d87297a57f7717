package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filepanel/docs"
	"filepanel/internal/backend"
	"filepanel/internal/cache"
	"filepanel/internal/config"
	"filepanel/internal/database"
	"filepanel/internal/database/migration"
	handlers "filepanel/internal/http/handler"
	"filepanel/internal/http/middleware"
	"filepanel/internal/logging"
	tracing "filepanel/internal/otel"
	"filepanel/internal/panel"
	"filepanel/internal/repository/postgres"
	"filepanel/internal/service"
	"filepanel/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title File Panel API
// @version 1.0
// @description Filterable file listing over a remote file service, with a per-filter query cache, delete and download.
// @BasePath /
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Location())

	if err := run(cfg, logger); err != nil {
		logger.Error("server_failed", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client, err := backend.NewHTTP(cfg.Backend)
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}
	health := map[string]handlers.Pinger{"backend": handlers.PingFunc(client.Ping)}

	cacheMetrics, err := cache.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register cache metrics: %w", err)
	}
	cacheOpts := []cache.Option{
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithMetrics(cacheMetrics),
		cache.WithLogger(logger),
	}

	switch cfg.Cache.Store {
	case config.CacheStoreMemory:
	case config.CacheStorePostgres:
		db, err := database.NewPostgres(cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect snapshot database: %w", err)
		}
		defer db.Close()

		if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
			return fmt.Errorf("migrate snapshot database: %w", err)
		}
		snapshots := postgres.NewSnapshotPostgres(db)
		cacheOpts = append(cacheOpts, cache.WithStore(snapshots))
		health["database"] = snapshots
	default:
		return fmt.Errorf("unknown CACHE_STORE %q", cfg.Cache.Store)
	}
	queryCache := cache.New(cacheOpts...)

	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register service metrics: %w", err)
	}
	svcOpts := []service.Option{service.WithLogger(logger), service.WithMetrics(svcMetrics)}
	if cfg.MinIO.Enabled() {
		objects, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		svcOpts = append(svcOpts, service.WithObjectStorage(objects))
		logger.Info("object_storage_enabled", map[string]any{"bucket": objects.Bucket()})
	}
	files := service.NewFileService(client, queryCache, svcOpts...)
	panels := panel.NewRegistry(files, logger)

	prom, err := middleware.NewPrometheusMiddleware(reg, "/healthz")
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(logger))
	app.Use(prom.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, handlers.Deps{
		Files:  files,
		Panels: panels,
		Health: health,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}

		docs.SwaggerInfo.Host = c.Get("Host", cfg.AppHost)
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		logger.Info("server_stopping", nil)
		_ = app.ShutdownWithTimeout(shutdownTimeout)
	}()

	addr := ":" + cfg.Port
	logger.Info("server_starting", map[string]any{
		"addr":          addr,
		"backend":       cfg.Backend.BaseURL,
		"cache_store":   cfg.Cache.Store,
		"cache_ttl_sec": cfg.Cache.TTLSec,
	})
	return app.Listen(addr)
}
