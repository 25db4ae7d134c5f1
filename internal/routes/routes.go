package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/control"
	"github.com/a2f-auth/a2f/internal/ledger"
	"github.com/a2f-auth/a2f/internal/middleware"
	"github.com/a2f-auth/a2f/internal/registry"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Ledger   ledger.Facade
	Registry registry.Repository
	Flows    control.Flows
	// BaseCtx is cancelled on shutdown; running handshakes end with it.
	BaseCtx context.Context
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Flows == nil || d.Registry == nil {
		return errors.New("routes: flows and registry are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.BaseCtx == nil {
		d.BaseCtx = context.Background()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Next:       func(c *fiber.Ctx) bool { return c.Path() == "/metrics" },
	}))
	app.Use(middleware.Audit(d.Logger, "/metrics", "/healthz"))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	RegisterAccountRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterMeRoute(api, d.Registry)

	if d.Cfg.StaticDir != "" {
		app.Static("/", d.Cfg.StaticDir)
	}
	return nil
}
