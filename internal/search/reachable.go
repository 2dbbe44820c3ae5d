package search

import (
	"time"

	"github.com/ptvtracker-planner/internal/graph"
	"github.com/ptvtracker-planner/internal/schedule"
)

// ReachableWithin returns every stop reachable from origin with an arrival no
// later than departAt plus budget. The bound is inclusive.
func ReachableWithin(g *graph.Graph, origin string, departAt schedule.Time, budget time.Duration) (*Reachability, error) {
	if departAt < 0 {
		return nil, invalid("negative departure time %d", departAt)
	}
	if budget < 0 {
		return nil, invalid("negative budget %s", budget)
	}

	res := &Reachability{Origin: origin, DepartAt: departAt, Budget: budget, Arrivals: map[string]schedule.Time{}}
	if isEmpty(g) {
		return res, nil
	}
	if err := checkStop(g, origin); err != nil {
		return nil, err
	}

	r := newRun(g, origin, departAt, departAt+schedule.FromDuration(budget))
	for {
		l, ok := r.next()
		if !ok {
			break
		}
		// the first label out of the queue holds the earliest arrival, and a
		// later arrival cannot improve any other stop
		if _, seen := res.Arrivals[l.stop]; seen {
			continue
		}
		res.Arrivals[l.stop] = l.arrival
		r.relax(l)
	}
	return res, nil
}
