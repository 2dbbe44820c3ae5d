package search

import (
	"github.com/ptvtracker-planner/internal/graph"
	"github.com/ptvtracker-planner/internal/schedule"
)

// EarliestArrival finds the earliest arrival at destination when leaving
// origin no earlier than departAt. Among journeys with that arrival it returns
// one with the fewest boardings. Unknown stops fail with a
// *schedule.NotFoundError; an unreachable destination returns a Journey with
// Found set to false. On a graph without stops every query is unreachable,
// so unknown stops are not reported there.
func EarliestArrival(g *graph.Graph, origin, destination string, departAt schedule.Time, opts ...Option) (*Journey, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if departAt < 0 {
		return nil, invalid("negative departure time %d", departAt)
	}

	j := &Journey{Origin: origin, Destination: destination, DepartAt: departAt}
	if isEmpty(g) {
		return j, nil
	}
	if err := checkStop(g, origin); err != nil {
		return nil, err
	}
	if err := checkStop(g, destination); err != nil {
		return nil, err
	}
	if origin == destination {
		j.Found = true
		j.Arrival = departAt
		return j, nil
	}

	r := newRun(g, origin, departAt, addLimit(departAt, o.horizon))
	for {
		l, ok := r.next()
		if !ok {
			return j, nil
		}
		if l.stop == destination {
			j.Found = true
			j.Arrival = l.arrival
			j.Legs = l.legs()
			return j, nil
		}
		r.relax(l)
		// nothing arriving after the best known arrival can improve on it
		if best, ok := r.earliest(destination); ok && best < r.limit {
			r.limit = best
		}
	}
}
