package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/sourcegraph/conc/iter"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/schedule"
)

type Builder struct {
	logger logger.Logger
}

func NewBuilder(logger logger.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build derives connections and transfers from store. Trips with a visit or a
// segment that runs backwards in time are skipped entirely and logged.
func (b *Builder) Build(store *schedule.Store, walkingSpeedMetersPerMinute, transferRadiusMeters float64) (*Graph, error) {
	if !(walkingSpeedMetersPerMinute > 0) || math.IsInf(walkingSpeedMetersPerMinute, 1) {
		return nil, fmt.Errorf("invalid walking speed: %v m/min", walkingSpeedMetersPerMinute)
	}
	if !(transferRadiusMeters >= 0) || math.IsInf(transferRadiusMeters, 1) {
		return nil, fmt.Errorf("invalid transfer radius: %v m", transferRadiusMeters)
	}

	g := &Graph{
		store:      store,
		departures: make(map[string][]Connection),
		transfers:  make(map[string][]Transfer),
		trips:      make(map[string][]Connection),
	}

	for _, trip := range store.Trips() {
		visits, err := store.TripStopSequence(trip.ID)
		if err != nil {
			return nil, fmt.Errorf("reading trip %s: %w", trip.ID, err)
		}
		if seq, ok := firstBackwards(visits); !ok {
			b.logger.Warn("Skipping trip with negative-duration segment",
				"trip_id", trip.ID,
				"route_id", trip.RouteID,
				"stop_sequence", seq)
			g.rejected = append(g.rejected, trip.ID)
			continue
		}
		for i := 0; i+1 < len(visits); i++ {
			from, to := visits[i], visits[i+1]
			c := Connection{
				From:      from.StopID,
				To:        to.StopID,
				Departure: from.Departure,
				Arrival:   to.Arrival,
				TripID:    trip.ID,
				RouteID:   trip.RouteID,
				Hop:       i,
			}
			g.departures[from.StopID] = append(g.departures[from.StopID], c)
			g.trips[trip.ID] = append(g.trips[trip.ID], c)
			g.connections++
		}
	}

	for stop, conns := range g.departures {
		sort.SliceStable(conns, func(i, j int) bool { return conns[i].Departure < conns[j].Departure })
		g.departures[stop] = conns
	}

	stops := store.Stops()
	walks := iter.Map(stops, func(s **schedule.Stop) []Transfer {
		return transfersFrom(store, *s, walkingSpeedMetersPerMinute, transferRadiusMeters)
	})
	for i, s := range stops {
		if len(walks[i]) == 0 {
			continue
		}
		g.transfers[s.ID] = walks[i]
		g.walks += len(walks[i])
	}

	b.logger.Info("Connection graph built",
		"stops", store.StopCount(),
		"connections", g.connections,
		"transfers", g.walks,
		"rejected_trips", len(g.rejected))

	return g, nil
}

// firstBackwards reports the sequence number of the first visit where time
// goes backwards, either within the visit or from the previous departure.
func firstBackwards(visits []schedule.StopVisit) (int, bool) {
	for i, v := range visits {
		if v.Departure < v.Arrival {
			return v.Sequence, false
		}
		if i > 0 && v.Arrival < visits[i-1].Departure {
			return v.Sequence, false
		}
	}
	return 0, true
}

func transfersFrom(store *schedule.Store, from *schedule.Stop, speed, radius float64) []Transfer {
	var out []Transfer
	for _, id := range store.StopsNear(from.Lat, from.Lon, radius) {
		if id == from.ID {
			continue
		}
		to, _ := store.Stop(id)
		meters := schedule.Distance(from.Lat, from.Lon, to.Lat, to.Lon)
		out = append(out, Transfer{
			From:     from.ID,
			To:       id,
			Duration: walkDuration(meters, speed),
			Meters:   meters,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Duration != out[j].Duration {
			return out[i].Duration < out[j].Duration
		}
		return out[i].To < out[j].To
	})
	return out
}

// walkDuration rounds up to whole minutes so a plan never assumes a faster
// walk than the configured pace.
func walkDuration(meters, metersPerMinute float64) schedule.Time {
	minutes := math.Ceil(meters/metersPerMinute - 1e-9)
	if minutes < 0 {
		minutes = 0
	}
	return schedule.Time(minutes) * 60
}
