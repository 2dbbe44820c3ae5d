// Package graph derives the time-dependent connection graph from a schedule.
package graph

import (
	"sort"

	"github.com/ptvtracker-planner/internal/schedule"
)

// Connection is one ride between two consecutive visits of a trip.
type Connection struct {
	From      string
	To        string
	Departure schedule.Time
	Arrival   schedule.Time
	TripID    string
	RouteID   string
	// Hop is the position of the connection within its trip, from zero.
	Hop int
}

// Duration of the ride.
func (c *Connection) Duration() schedule.Time {
	return c.Arrival - c.Departure
}

// Transfer is a walking link usable at any time.
type Transfer struct {
	From     string
	To       string
	Duration schedule.Time
	Meters   float64
}

// Stats summarises a built graph.
type Stats struct {
	Stops         int
	Trips         int
	Connections   int
	Transfers     int
	RejectedTrips int
}

// Graph is immutable once Build returns it.
type Graph struct {
	store *schedule.Store

	// departures per origin stop, ascending by departure; equal departures
	// keep the order in which they were derived
	departures map[string][]Connection
	// transfers per origin stop, ascending by duration then destination
	transfers map[string][]Transfer
	// connections per trip in ride order
	trips map[string][]Connection

	rejected    []string
	connections int
	walks       int
}

// DeparturesFrom returns the connections leaving stop at or after t.
// The returned slice must not be modified.
func (g *Graph) DeparturesFrom(stop string, t schedule.Time) []Connection {
	conns := g.departures[stop]
	i := sort.Search(len(conns), func(i int) bool { return conns[i].Departure >= t })
	return conns[i:]
}

// TripFrom returns the connections of trip from hop onwards, in ride order.
// The returned slice must not be modified.
func (g *Graph) TripFrom(tripID string, hop int) []Connection {
	conns := g.trips[tripID]
	if hop < 0 || hop >= len(conns) {
		return nil
	}
	return conns[hop:]
}

// TransfersFrom returns the walking links leaving stop.
func (g *Graph) TransfersFrom(stop string) []Transfer {
	return g.transfers[stop]
}

// Connections returns every connection grouped by origin stop in stop id order.
func (g *Graph) Connections() []Connection {
	out := make([]Connection, 0, g.connections)
	for _, s := range g.store.Stops() {
		out = append(out, g.departures[s.ID]...)
	}
	return out
}

// HasStop reports whether id is a stop of the underlying schedule.
func (g *Graph) HasStop(id string) bool {
	_, ok := g.store.Stop(id)
	return ok
}

func (g *Graph) Stop(id string) (*schedule.Stop, bool) { return g.store.Stop(id) }

func (g *Graph) Trip(id string) (*schedule.Trip, bool) { return g.store.Trip(id) }

func (g *Graph) Route(id string) (*schedule.Route, bool) { return g.store.Route(id) }

// RejectedTrips lists trips left out because of negative-duration segments.
func (g *Graph) RejectedTrips() []string {
	out := make([]string, len(g.rejected))
	copy(out, g.rejected)
	return out
}

func (g *Graph) Stats() Stats {
	return Stats{
		Stops:         g.store.StopCount(),
		Trips:         g.store.TripCount() - len(g.rejected),
		Connections:   g.connections,
		Transfers:     g.walks,
		RejectedTrips: len(g.rejected),
	}
}
