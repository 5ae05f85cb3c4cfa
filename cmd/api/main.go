package main

import (
	"context"
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

	"mediaapi/docs"
	"mediaapi/internal/config"
	handlers "mediaapi/internal/http/handler"
	"mediaapi/internal/http/middleware"
	"mediaapi/internal/logging"
	"mediaapi/internal/otel"
	"mediaapi/internal/service"
	"mediaapi/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Media Upload API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		fatal(log, "tracing_init_failed", err)
	}

	// Category directories are created up front; uploads never create directories.
	store, err := storage.NewDisk(cfg.Storage.Root, cfg.Storage.ImagesDir, cfg.Storage.DocumentsDir)
	if err != nil {
		fatal(log, "storage_init_failed", err)
	}

	opts := []service.Option{
		service.WithTranscoder(service.NewJPEGTranscoder(cfg.Transcode)),
		service.WithLogger(log),
	}

	app := fiber.New(handlers.FiberConfig(cfg))

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(cfg.Location))
	app.Use(otelfiber.Middleware(otelfiber.WithServerName(otel.DefaultServiceName)))

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
		if err != nil {
			fatal(log, "metrics_init_failed", err)
		}
		metrics, err := service.NewMetrics(reg)
		if err != nil {
			fatal(log, "metrics_init_failed", err)
		}
		opts = append(opts, service.WithMetrics(metrics))

		app.Use(promMiddleware.Handler())
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	svc := service.NewUploadService(store, service.RulesFromConfig(cfg.Storage), opts...)

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

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, cfg, store, svc)

	errc := make(chan error, 1)
	go func() {
		log.Info("server_starting", map[string]any{
			"port":          cfg.Port,
			"api_prefix":    cfg.APIPrefix,
			"storage_root":  cfg.Storage.Root,
			"body_limit":    cfg.BodyLimit(),
			"metrics":       cfg.MetricsEnabled,
			"verify_pdf":    cfg.Storage.VerifyPDF,
			"jpeg_quality":  cfg.Transcode.JPEGQuality,
			"auto_orient":   cfg.Transcode.AutoOrient,
			"image_types":   cfg.Storage.AllowedImageTypes,
			"document_type": cfg.Storage.AllowedDocumentTypes,
		})
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if err != nil {
			fatal(log, "server_failed", err)
		}
	case <-ctx.Done():
		log.Info("server_stopping", nil)
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", err, nil)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error("tracing_shutdown_failed", err, nil)
	}
}

func fatal(log *logging.Logger, event string, err error) {
	log.Error(event, err, nil)
	os.Exit(1)
}
