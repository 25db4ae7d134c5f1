package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/routes"
)

// Control channels stay open for a whole correlation wait, so only idle
// keep-alive connections are timed out.
const idleTimeout = 2 * time.Minute

// Server wraps the Fiber application serving the verifier.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		IdleTimeout:           idleTimeout,
		DisableStartupMessage: true,
	})

	deps.Cfg = cfg
	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}
	return &Server{app: app, cfg: cfg}, nil
}

// App exposes the underlying Fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
