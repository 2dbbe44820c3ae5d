// Package search runs earliest-arrival and bounded reachability queries over
// a connection graph. Both share one relaxation routine and differ only in
// their stopping rule.
package search

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ptvtracker-planner/internal/graph"
	"github.com/ptvtracker-planner/internal/schedule"
)

// ErrInvalidQuery wraps query arguments rejected before any search work.
var ErrInvalidQuery = errors.New("invalid query")

const unbounded = schedule.Time(math.MaxInt32)

type Option func(*options)

type options struct {
	horizon time.Duration
}

// WithHorizon bounds an earliest-arrival search to arrivals no later than
// the departure time plus d. Zero or negative means no bound.
func WithHorizon(d time.Duration) Option {
	return func(o *options) { o.horizon = d }
}

// label is one way of reaching a stop that no other known way beats on both
// arrival and boardings.
type label struct {
	stop      string
	arrival   schedule.Time
	boardings int
	path      *step
	// dead is set once a better label for the same stop replaces it
	dead bool
}

// step is a leg with a link to the legs before it. Paths share prefixes.
type step struct {
	leg  Leg
	prev *step
}

// boarding records that a trip was boarded at hop with the given count.
type boarding struct {
	hop       int
	boardings int
}

type run struct {
	g      *graph.Graph
	origin string
	// fronts holds the live labels of each stop
	fronts map[string][]*label
	// boarded holds the non-dominated boardings of each trip
	boarded map[string][]boarding
	q       queue
	// limit is the latest arrival still worth enqueuing
	limit schedule.Time
}

func newRun(g *graph.Graph, origin string, departAt, limit schedule.Time) *run {
	r := &run{
		g:       g,
		origin:  origin,
		fronts:  map[string][]*label{},
		boarded: map[string][]boarding{},
		limit:   limit,
	}
	r.add(&label{stop: origin, arrival: departAt})
	return r
}

// next pops the next final label, skipping labels replaced since they were
// pushed. Labels come out by arrival, then boardings.
func (r *run) next() (*label, bool) {
	for !r.q.empty() {
		l := r.q.pop()
		if l.dead {
			continue
		}
		return l, true
	}
	return nil, false
}

// relax scans every edge usable from the stop of l after arriving per l.
func (r *run) relax(l *label) {
	for _, tr := range r.g.TransfersFrom(l.stop) {
		r.offer(tr.To, l.arrival+tr.Duration, l.boardings, &step{prev: l.path, leg: Leg{
			Kind:      Walk,
			From:      l.stop,
			To:        tr.To,
			Departure: l.arrival,
			Arrival:   l.arrival + tr.Duration,
		}})
	}

	for _, c := range r.g.DeparturesFrom(l.stop, l.arrival) {
		// sorted by departure, and no ride arrives before it departs
		if c.Departure > r.limit {
			break
		}
		r.board(l, c)
	}
}

// board rides trip of c from l to each of its later stops. A passenger
// already on the trip with no more boardings covers every such stop, so the
// ride is skipped then.
func (r *run) board(l *label, c graph.Connection) {
	boardings := l.boardings + 1
	for _, b := range r.boarded[c.TripID] {
		if b.hop <= c.Hop && b.boardings <= boardings {
			return
		}
	}
	kept := r.boarded[c.TripID][:0]
	for _, b := range r.boarded[c.TripID] {
		if !(c.Hop <= b.hop && boardings <= b.boardings) {
			kept = append(kept, b)
		}
	}
	r.boarded[c.TripID] = append(kept, boarding{hop: c.Hop, boardings: boardings})

	path := l.path
	for _, ride := range r.g.TripFrom(c.TripID, c.Hop) {
		if ride.Departure > r.limit {
			return
		}
		path = &step{prev: path, leg: Leg{
			Kind:      Ride,
			From:      ride.From,
			To:        ride.To,
			Departure: ride.Departure,
			Arrival:   ride.Arrival,
			TripID:    ride.TripID,
			RouteID:   ride.RouteID,
		}}
		r.offer(ride.To, ride.Arrival, boardings, path)
	}
}

// offer adds a label for stop unless a known label arrives no later with no
// more boardings. Labels the new one beats are dropped.
func (r *run) offer(stop string, arrival schedule.Time, boardings int, path *step) {
	if arrival > r.limit {
		return
	}
	front := r.fronts[stop]
	for _, cur := range front {
		if cur.arrival <= arrival && cur.boardings <= boardings {
			return
		}
	}
	kept := front[:0]
	for _, cur := range front {
		if arrival <= cur.arrival && boardings <= cur.boardings {
			cur.dead = true
			continue
		}
		kept = append(kept, cur)
	}
	r.fronts[stop] = kept
	r.add(&label{stop: stop, arrival: arrival, boardings: boardings, path: path})
}

func (r *run) add(l *label) {
	r.fronts[l.stop] = append(r.fronts[l.stop], l)
	r.q.push(l)
}

// earliest returns the earliest arrival known for stop.
func (r *run) earliest(stop string) (schedule.Time, bool) {
	front := r.fronts[stop]
	if len(front) == 0 {
		return 0, false
	}
	best := front[0].arrival
	for _, l := range front[1:] {
		if l.arrival < best {
			best = l.arrival
		}
	}
	return best, true
}

// legs unwinds the path of l from the origin.
func (l *label) legs() []Leg {
	var legs []Leg
	for s := l.path; s != nil; s = s.prev {
		legs = append(legs, s.leg)
	}
	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}
	return legs
}

func checkStop(g *graph.Graph, id string) error {
	if !g.HasStop(id) {
		return &schedule.NotFoundError{Kind: "stop", ID: id}
	}
	return nil
}

func addLimit(t schedule.Time, d time.Duration) schedule.Time {
	if d <= 0 {
		return unbounded
	}
	limit := int64(t) + int64(d/time.Second)
	if limit > int64(unbounded) {
		return unbounded
	}
	return schedule.Time(limit)
}

func isEmpty(g *graph.Graph) bool {
	return g == nil || g.Stats().Stops == 0
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
