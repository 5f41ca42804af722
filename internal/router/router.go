package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/socio-dl/socio-go/internal/handler"
	"github.com/socio-dl/socio-go/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Root      fiber.Handler
	Health    *handler.HealthHandler
	VideoInfo *handler.VideoInfoHandler
	Usage     *handler.UsageHandler
	Download  *handler.DownloadHandler
	History   *handler.HistoryHandler
	// Files is nil when artifacts are uploaded off-host.
	Files *handler.FilesHandler

	InfoLimiter *middleware.RateLimiter
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(middleware.NewCORS(corsOrigins))
	app.Use(handler.MetricsMiddleware())

	app.Get("/", h.Root)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	api := app.Group("/api")

	if h.InfoLimiter != nil {
		api.Post("/video-info", h.InfoLimiter.Handler(), h.VideoInfo.Lookup)
	} else {
		api.Post("/video-info", h.VideoInfo.Lookup)
	}
	api.Get("/usage", h.Usage.Get)
	api.Post("/download", h.Download.Create)
	api.Get("/history", h.History.List)

	if h.Files != nil {
		app.Get("/files/:name", h.Files.Serve)
	}
}
