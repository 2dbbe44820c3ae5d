// Package api exposes the planner over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/planner"
	"github.com/ptvtracker-planner/internal/schedule"
	"github.com/ptvtracker-planner/internal/search"
)

// Planner is the query surface served by the API. Handlers read the snapshot
// once and run the query on it, so names and build ids always match the
// timetable that answered.
type Planner interface {
	Snapshot() *planner.Snapshot
	JourneyOn(ctx context.Context, snap *planner.Snapshot, origin, destination string, departAt schedule.Time) (*search.Journey, error)
	ReachableOn(ctx context.Context, snap *planner.Snapshot, origin string, departAt schedule.Time, budget time.Duration) (*search.Reachability, error)
	StopsNear(lat, lon, radiusMeters float64) ([]*schedule.Stop, error)
}

type Server struct {
	app    *fiber.App
	listen string
	logger logger.Logger
}

func NewServer(listen string, p Planner, log logger.Logger) *Server {
	return &Server{
		app:    NewApp(p, log),
		listen: listen,
		logger: log,
	}
}

// NewApp wires the routes onto a fiber app.
func NewApp(p Planner, log logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	app.Use(requestLogger(log))

	h := &handlers{planner: p}
	app.Get("/healthz", h.health)

	group := app.Group("/v1")
	group.Get("/journeys", h.journeys)
	group.Get("/reachable", h.reachable)
	group.Get("/stops/near", h.stopsNear)

	return app
}

func (s *Server) Listen() error {
	s.logger.Info("HTTP server listening", "addr", s.listen)
	return s.app.Listen(s.listen)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler turns errors returned by handlers into JSON responses.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var nf *schedule.NotFoundError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &nf):
		code = fiber.StatusNotFound
	case errors.Is(err, search.ErrInvalidQuery):
		code = fiber.StatusBadRequest
	case errors.Is(err, planner.ErrNotReady):
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
