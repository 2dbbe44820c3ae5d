package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ptvtracker-planner/internal/planner"
	"github.com/ptvtracker-planner/internal/schedule"
	"github.com/ptvtracker-planner/internal/search"
)

const defaultNearRadius = 500.0

type handlers struct {
	planner Planner
}

type stopView struct {
	ID   string  `json:"id"`
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type legView struct {
	Kind      search.LegKind `json:"kind"`
	From      string         `json:"from"`
	FromName  string         `json:"from_name,omitempty"`
	To        string         `json:"to"`
	ToName    string         `json:"to_name,omitempty"`
	Departure schedule.Time  `json:"departure"`
	Arrival   schedule.Time  `json:"arrival"`
	TripID    string         `json:"trip_id,omitempty"`
	Route     string         `json:"route,omitempty"`
	Headsign  string         `json:"headsign,omitempty"`
}

type journeyView struct {
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
	DepartAt    schedule.Time  `json:"depart_at"`
	Found       bool           `json:"found"`
	Arrival     *schedule.Time `json:"arrival,omitempty"`
	Duration    string         `json:"duration,omitempty"`
	Boardings   int            `json:"boardings"`
	Legs        []legView      `json:"legs"`
	BuildID     string         `json:"build_id"`
}

type arrivalView struct {
	StopID  string        `json:"stop_id"`
	Name    string        `json:"name,omitempty"`
	Arrival schedule.Time `json:"arrival"`
}

type reachableView struct {
	Origin   string        `json:"origin"`
	DepartAt schedule.Time `json:"depart_at"`
	Budget   string        `json:"budget"`
	Stops    []arrivalView `json:"stops"`
	BuildID  string        `json:"build_id"`
}

func (h *handlers) health(c *fiber.Ctx) error {
	snap := h.planner.Snapshot()
	if snap == nil {
		return planner.ErrNotReady
	}
	stats := snap.Graph.Stats()
	return c.JSON(fiber.Map{
		"status":      "ok",
		"version":     snap.Version,
		"build_id":    snap.BuildID,
		"built_at":    snap.BuiltAt,
		"stops":       stats.Stops,
		"connections": stats.Connections,
		"transfers":   stats.Transfers,
	})
}

func (h *handlers) journeys(c *fiber.Ctx) error {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		return fiber.NewError(fiber.StatusBadRequest, "parameters from and to are required")
	}
	depart, err := departParam(c)
	if err != nil {
		return err
	}

	snap := h.planner.Snapshot()
	j, err := h.planner.JourneyOn(c.UserContext(), snap, from, to, depart)
	if err != nil {
		return err
	}

	view := journeyView{
		Origin:      j.Origin,
		Destination: j.Destination,
		DepartAt:    j.DepartAt,
		Found:       j.Found,
		Legs:        []legView{},
		BuildID:     buildID(snap),
	}
	if j.Found {
		arrival := j.Arrival
		view.Arrival = &arrival
		view.Duration = j.Duration().String()
		view.Boardings = j.Boardings()
		for _, leg := range j.Compact() {
			view.Legs = append(view.Legs, describeLeg(snap, leg))
		}
	}
	return c.JSON(view)
}

func (h *handlers) reachable(c *fiber.Ctx) error {
	from := c.Query("from")
	if from == "" {
		return fiber.NewError(fiber.StatusBadRequest, "parameter from is required")
	}
	depart, err := departParam(c)
	if err != nil {
		return err
	}
	budget, err := time.ParseDuration(c.Query("budget"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "parameter budget should be a duration such as 50m")
	}

	snap := h.planner.Snapshot()
	r, err := h.planner.ReachableOn(c.UserContext(), snap, from, depart, budget)
	if err != nil {
		return err
	}

	view := reachableView{
		Origin:   r.Origin,
		DepartAt: r.DepartAt,
		Budget:   r.Budget.String(),
		Stops:    make([]arrivalView, 0, len(r.Arrivals)),
		BuildID:  buildID(snap),
	}
	for _, id := range r.Stops() {
		view.Stops = append(view.Stops, arrivalView{StopID: id, Name: stopName(snap, id), Arrival: r.Arrivals[id]})
	}
	return c.JSON(view)
}

func (h *handlers) stopsNear(c *fiber.Ctx) error {
	lat, err := floatParam(c, "lat", nil)
	if err != nil {
		return err
	}
	lon, err := floatParam(c, "lon", nil)
	if err != nil {
		return err
	}
	fallback := defaultNearRadius
	radius, err := floatParam(c, "radius", &fallback)
	if err != nil {
		return err
	}
	if radius < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "parameter radius must not be negative")
	}

	stops, err := h.planner.StopsNear(lat, lon, radius)
	if err != nil {
		return err
	}
	out := make([]stopView, 0, len(stops))
	for _, s := range stops {
		out = append(out, stopView{ID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon})
	}
	return c.JSON(fiber.Map{"stops": out})
}

func departParam(c *fiber.Ctx) (schedule.Time, error) {
	raw := c.Query("depart")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "parameter depart is required")
	}
	t, err := schedule.ParseTime(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "parameter depart should be HH:MM:SS")
	}
	return t, nil
}

func floatParam(c *fiber.Ctx, name string, fallback *float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		if fallback != nil {
			return *fallback, nil
		}
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("parameter %s is required", name))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("parameter %s should be a number", name))
	}
	return v, nil
}

func describeLeg(snap *planner.Snapshot, leg search.Leg) legView {
	v := legView{
		Kind:      leg.Kind,
		From:      leg.From,
		FromName:  stopName(snap, leg.From),
		To:        leg.To,
		ToName:    stopName(snap, leg.To),
		Departure: leg.Departure,
		Arrival:   leg.Arrival,
		TripID:    leg.TripID,
		Route:     leg.RouteID,
	}
	if snap == nil || leg.Kind != search.Ride {
		return v
	}
	if route, ok := snap.Store.Route(leg.RouteID); ok && route.DisplayName() != "" {
		v.Route = route.DisplayName()
	}
	if trip, ok := snap.Store.Trip(leg.TripID); ok {
		v.Headsign = trip.Headsign
	}
	return v
}

func stopName(snap *planner.Snapshot, id string) string {
	if snap == nil {
		return ""
	}
	if stop, ok := snap.Store.Stop(id); ok {
		return stop.Name
	}
	return ""
}

func buildID(snap *planner.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.BuildID
}
