// Package web exposes the orchestrator's health endpoint.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/foyerhq/foyer/pkg/orchestrator"
)

// HealthSource supplies the current health snapshot.
type HealthSource interface {
	Health() orchestrator.Health
}

// Server serves GET /health for liveness probes and operators.
type Server struct {
	app    *fiber.App
	addr   string
	source HealthSource
	logger *slog.Logger
}

// NewServer creates the health server. addr is a listen address like ":8080".
func NewServer(addr string, source HealthSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   addr,
		source: source,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "foyer",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	app.Get("/health", s.handleHealth)

	s.app = app
	return s
}

// handleHealth returns the orchestrator's health snapshot.
// A degraded pipeline still answers 200; probes read the status field.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(s.source.Health())
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("health endpoint listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync runs the server in a goroutine, logging any listen failure.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
