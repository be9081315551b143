package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clinicdocs/docs"
	"clinicdocs/internal/changefeed"
	"clinicdocs/internal/config"
	"clinicdocs/internal/database"
	"clinicdocs/internal/database/migration"
	handlers "clinicdocs/internal/http/handler"
	"clinicdocs/internal/http/middleware"
	"clinicdocs/internal/otel"
	"clinicdocs/internal/repository/postgres"
	"clinicdocs/internal/service"
	"clinicdocs/internal/storage"
	"clinicdocs/pkg/logging"
)

// @title Clinic Documents API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server_exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
			return err
		}
	}

	storeOpts := []service.Option{
		service.WithLogger(logger),
		service.WithCollection(service.UsersCollection, service.NewUserCollection(postgres.NewUserPostgres(db))),
	}

	if cfg.Redis.Addr != "" {
		rdb, err := changefeed.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			// Listeners are optional; mutations keep working without them.
			logger.Warn("changefeed_disabled", "error", err.Error())
		} else {
			defer rdb.Close()
			storeOpts = append(storeOpts, service.WithFeed(changefeed.NewRedisFeed(rdb, cfg.Redis.ChannelPrefix, logger)))
		}
	}

	docStore := service.NewDocumentStore(postgres.NewDocumentPostgres(db), storeOpts...)

	objStore, err := newObjectStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	attachments := service.NewAttachmentService(objStore, docStore, logger)

	app, err := newApp(db, docStore, attachments)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	logger.Info("server_started", "port", cfg.Port, "reserved_collections", docStore.ReservedCollections())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("server_stopping")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(sctx)
	}
}

// newObjectStorage returns MinIO with a local-disk fallback, or local disk alone when
// MinIO is not configured or unreachable at startup.
func newObjectStorage(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger) (storage.Storage, error) {
	local, err := storage.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		return nil, err
	}
	if cfg.MinIO.Endpoint == "" {
		logger.Info("storage_configured", "backend", "local", "dir", cfg.Storage.LocalDir)
		return local, nil
	}

	remote, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		logger.Warn("minio_unavailable", "error", err.Error(), "fallback_dir", cfg.Storage.LocalDir)
		return local, nil
	}
	logger.Info("storage_configured", "backend", "minio", "bucket", cfg.MinIO.Bucket, "fallback_dir", cfg.Storage.LocalDir)
	return storage.NewFallback(remote, local, logger), nil
}

func newApp(db *sql.DB, docStore service.DocumentStore, attachments service.AttachmentService) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		UnescapePath: true,
		BodyLimit:    32 << 20,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(metrics.Handler())

	app.Get(middleware.MetricsPath, middleware.MetricsHandler(reg))

	handlers.RegisterRoutes(app, db, docStore, attachments)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}
