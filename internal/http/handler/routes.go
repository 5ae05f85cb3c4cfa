package handler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"mediaapi/internal/config"
	"mediaapi/internal/http/middleware"
	"mediaapi/internal/model"
	"mediaapi/internal/service"
	"mediaapi/internal/storage"
)

// FiberConfig returns the server settings for the upload API. Request bodies are
// streamed, and multipart parts larger than a few KiB are spooled to temporary
// files instead of being held in memory.
func FiberConfig(cfg *config.AppConfig) fiber.Config {
	return fiber.Config{
		ErrorHandler:                 ErrorHandler(),
		BodyLimit:                    cfg.BodyLimit(),
		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Upload and listing routes live under cfg.APIPrefix; stored files are served
// read-only at /<category>/*.
func RegisterRoutes(app *fiber.App, cfg *config.AppConfig, store storage.Storage, svc service.UploadService) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	api := app.Group(cfg.APIPrefix, middleware.ContentLengthLimit(cfg.BodyLimit()))
	dirs := map[model.Category]string{
		model.CategoryImages:    cfg.Storage.ImagesDir,
		model.CategoryDocuments: cfg.Storage.DocumentsDir,
	}
	for _, cat := range model.Categories {
		api.Post("/"+string(cat), UploadFile(svc, cat))
		api.Get("/"+string(cat), ListFiles(svc, cat))
	}

	// Static routes go last so an empty API prefix keeps the listing on GET /<category>.
	for _, cat := range model.Categories {
		app.Static("/"+string(cat), filepath.Join(cfg.Storage.Root, filepath.FromSlash(dirs[cat])), fiber.Static{
			Browse: false,
		})
	}
}

// HealthCheck reports whether every storage directory is usable.
//
// @Summary  Readiness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Failure  503  {object}  errorPayload
// @Router   /health [get]
func HealthCheck(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is serving.
//
// @Summary  Liveness probe
// @Tags     health
// @Success  200
// @Router   /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
