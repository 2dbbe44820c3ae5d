package search

import (
	"sort"
	"time"

	"github.com/ptvtracker-planner/internal/schedule"
)

type LegKind string

const (
	Ride LegKind = "ride"
	Walk LegKind = "walk"
)

// Leg is one edge of a realized path.
type Leg struct {
	Kind      LegKind       `json:"kind"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Departure schedule.Time `json:"departure"`
	Arrival   schedule.Time `json:"arrival"`
	TripID    string        `json:"trip_id,omitempty"`
	RouteID   string        `json:"route_id,omitempty"`
}

// Journey is the result of an earliest-arrival query. Found is false when no
// route exists, which is a normal outcome rather than an error.
type Journey struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	DepartAt    schedule.Time `json:"depart_at"`
	Found       bool          `json:"found"`
	Arrival     schedule.Time `json:"arrival"`
	Legs        []Leg         `json:"legs,omitempty"`
}

// Duration from the requested departure to arrival.
func (j *Journey) Duration() time.Duration {
	if !j.Found {
		return 0
	}
	return (j.Arrival - j.DepartAt).Duration()
}

// Boardings counts the distinct trips ridden.
func (j *Journey) Boardings() int {
	trips := make(map[string]bool)
	for _, l := range j.Legs {
		if l.Kind == Ride {
			trips[l.TripID] = true
		}
	}
	return len(trips)
}

// Compact merges consecutive rides on the same trip into a single leg.
func (j *Journey) Compact() []Leg {
	var out []Leg
	for _, l := range j.Legs {
		if n := len(out); n > 0 && l.Kind == Ride && out[n-1].Kind == Ride && out[n-1].TripID == l.TripID {
			out[n-1].To = l.To
			out[n-1].Arrival = l.Arrival
			continue
		}
		out = append(out, l)
	}
	return out
}

// Reachability maps every stop reachable within the budget to its earliest
// arrival. The origin is always present at DepartAt.
type Reachability struct {
	Origin   string                   `json:"origin"`
	DepartAt schedule.Time            `json:"depart_at"`
	Budget   time.Duration            `json:"budget"`
	Arrivals map[string]schedule.Time `json:"arrivals"`
}

// Stops lists reachable stops by arrival, then id.
func (r *Reachability) Stops() []string {
	ids := make([]string, 0, len(r.Arrivals))
	for id := range r.Arrivals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		ta, tb := r.Arrivals[ids[a]], r.Arrivals[ids[b]]
		if ta != tb {
			return ta < tb
		}
		return ids[a] < ids[b]
	})
	return ids
}
