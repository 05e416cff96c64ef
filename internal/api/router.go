package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/service"
	"github.com/saturnino-fabrica-de-software/faceverify/internal/ws"
)

type Config struct {
	BodyLimit int
	// Production hides the startup banner; Development prints the route table
	Production  bool
	Development bool
}

type Dependencies struct {
	Service *service.ComparisonService
	Pool    handler.PoolStats
	// Stream pushes audit events to websocket subscribers; optional
	Stream *ws.Hub
	// Optional, set when audit events are stored in Postgres
	Events  handler.EventReader
	AuditDB handler.Pinger
	// Embedder is checked by /ready when the model runs out of process
	Embedder handler.Readier
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, cfg Config, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "faceverify",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: cfg.Production,
		EnablePrintRoutes:     cfg.Development,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(middleware.RequestID())
	r.app.Use(middleware.Correlation())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + middleware.CorrelationHeader,
		ExposeHeaders: middleware.CorrelationHeader,
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	healthHandler := handler.NewHealthHandler(r.deps.Pool, r.deps.AuditDB, r.deps.Embedder)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	thresholdHandler := handler.NewThresholdHandler(r.deps.Service, r.logger)
	r.app.Post("/set_threshold", thresholdHandler.Set)
	r.app.Get("/threshold", thresholdHandler.Get)

	compareHandler := handler.NewCompareHandler(r.deps.Service, r.logger)
	faceapp := r.app.Group("/faceapp")
	faceapp.Post("/compare/", compareHandler.CompareImages)
	faceapp.Post("/compare_video/", compareHandler.CompareVideo)

	if r.deps.Events != nil {
		logsHandler := handler.NewLogsHandler(r.deps.Events, r.logger)
		r.app.Get("/logs", logsHandler.List)
	}

	if r.deps.Stream != nil {
		r.app.Get("/events", ws.UpgradeMiddleware(), ws.Handler(r.deps.Stream))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
