// Package status exposes pipeline run counters over HTTP for long
// scraping runs.
package status

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/pipeline"
	"github.com/openvox/voxharvest/pkg/logging"
)

// Server serves /health and /progress for a running pipeline.
type Server struct {
	app      *fiber.App
	progress *pipeline.Progress
	logger   zerolog.Logger
}

// New builds the status server around a pipeline's progress counters.
func New(progress *pipeline.Progress) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{
		app:      app,
		progress: progress,
		logger:   logging.GetLogger("status"),
	}

	app.Get("/health", s.handleHealth)
	app.Get("/progress", s.handleProgress)
	return s
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProgress(c *fiber.Ctx) error {
	return c.JSON(s.progress.Snapshot())
}

// Listen serves until Shutdown; it is meant to run in its own goroutine.
func (s *Server) Listen(bind string) error {
	s.logger.Info().Str("bind", bind).Msg("status server listening")
	return s.app.Listen(bind)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
