// Package schedule holds the normalized, immutable in-memory timetable.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

type Route struct {
	ID        string
	ShortName string
	LongName  string
}

// DisplayName prefers the short name, as riders see it on vehicles.
func (r *Route) DisplayName() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.LongName
}

type Trip struct {
	ID        string
	RouteID   string
	ServiceID string
	Headsign  string
}

type StopVisit struct {
	TripID    string
	Sequence  int
	StopID    string
	Arrival   Time
	Departure Time
}

// Store is built once by Load and never mutated afterwards, so it can be
// shared by any number of readers.
type Store struct {
	stops  map[string]*Stop
	routes map[string]*Route
	trips  map[string]*Trip
	visits map[string][]StopVisit

	stopIDs []string
	tripIDs []string
	// byLat holds every stop ordered by latitude for StopsNear.
	byLat []*Stop
}

// LoadTimetable loads the four tables of a parsed timetable.
func LoadTimetable(tt *models.Timetable) (*Store, error) {
	return Load(tt.Stops, tt.Routes, tt.Trips, tt.StopTimes)
}

// Load validates the records and builds a new Store. It fails with a
// *SchemaError for absent or malformed fields and a *ReferentialError for
// references to unknown routes, trips or stops.
func Load(stops []models.Stop, routes []models.Route, trips []models.Trip, visits []models.StopTime) (*Store, error) {
	s := &Store{
		stops:  make(map[string]*Stop, len(stops)),
		routes: make(map[string]*Route, len(routes)),
		trips:  make(map[string]*Trip, len(trips)),
		visits: make(map[string][]StopVisit, len(trips)),
	}

	for i, rec := range stops {
		stop, err := parseStop(i, rec)
		if err != nil {
			return nil, err
		}
		if _, dup := s.stops[stop.ID]; dup {
			return nil, &SchemaError{Table: "stops", Row: i, Field: "stop_id", Reason: "duplicate id " + strconv.Quote(stop.ID)}
		}
		s.stops[stop.ID] = stop
	}

	for i, rec := range routes {
		id := strings.TrimSpace(rec.RouteID)
		if id == "" {
			return nil, &SchemaError{Table: "routes", Row: i, Field: "route_id", Reason: "required"}
		}
		if _, dup := s.routes[id]; dup {
			return nil, &SchemaError{Table: "routes", Row: i, Field: "route_id", Reason: "duplicate id " + strconv.Quote(id)}
		}
		s.routes[id] = &Route{ID: id, ShortName: rec.RouteShortName, LongName: rec.RouteLongName}
	}

	for i, rec := range trips {
		id := strings.TrimSpace(rec.TripID)
		routeID := strings.TrimSpace(rec.RouteID)
		switch {
		case id == "":
			return nil, &SchemaError{Table: "trips", Row: i, Field: "trip_id", Reason: "required"}
		case routeID == "":
			return nil, &SchemaError{Table: "trips", Row: i, Field: "route_id", Reason: "required"}
		}
		if _, dup := s.trips[id]; dup {
			return nil, &SchemaError{Table: "trips", Row: i, Field: "trip_id", Reason: "duplicate id " + strconv.Quote(id)}
		}
		if _, ok := s.routes[routeID]; !ok {
			return nil, &ReferentialError{Table: "trips", Row: i, Field: "route_id", Value: routeID}
		}
		s.trips[id] = &Trip{ID: id, RouteID: routeID, ServiceID: rec.ServiceID, Headsign: rec.TripHeadsign}
	}

	seen := make(map[string]map[int]bool)
	for i, rec := range visits {
		v, err := parseVisit(i, rec)
		if err != nil {
			return nil, err
		}
		if _, ok := s.trips[v.TripID]; !ok {
			return nil, &ReferentialError{Table: "stop_times", Row: i, Field: "trip_id", Value: v.TripID}
		}
		if _, ok := s.stops[v.StopID]; !ok {
			return nil, &ReferentialError{Table: "stop_times", Row: i, Field: "stop_id", Value: v.StopID}
		}
		if seen[v.TripID] == nil {
			seen[v.TripID] = make(map[int]bool)
		}
		if seen[v.TripID][v.Sequence] {
			return nil, &SchemaError{Table: "stop_times", Row: i, Field: "stop_sequence",
				Reason: fmt.Sprintf("duplicate sequence %d for trip %q", v.Sequence, v.TripID)}
		}
		seen[v.TripID][v.Sequence] = true
		s.visits[v.TripID] = append(s.visits[v.TripID], v)
	}

	for _, seq := range s.visits {
		sort.Slice(seq, func(a, b int) bool { return seq[a].Sequence < seq[b].Sequence })
	}

	s.stopIDs = sortedKeys(s.stops)
	s.tripIDs = sortedKeys(s.trips)
	s.byLat = make([]*Stop, 0, len(s.stops))
	for _, id := range s.stopIDs {
		s.byLat = append(s.byLat, s.stops[id])
	}
	sort.SliceStable(s.byLat, func(a, b int) bool { return s.byLat[a].Lat < s.byLat[b].Lat })

	return s, nil
}

func parseStop(row int, rec models.Stop) (*Stop, error) {
	id := strings.TrimSpace(rec.StopID)
	if id == "" {
		return nil, &SchemaError{Table: "stops", Row: row, Field: "stop_id", Reason: "required"}
	}
	lat, err := parseCoordinate(rec.StopLat, 90)
	if err != nil {
		return nil, &SchemaError{Table: "stops", Row: row, Field: "stop_lat", Reason: err.Error()}
	}
	lon, err := parseCoordinate(rec.StopLon, 180)
	if err != nil {
		return nil, &SchemaError{Table: "stops", Row: row, Field: "stop_lon", Reason: err.Error()}
	}
	return &Stop{ID: id, Name: rec.StopName, Lat: lat, Lon: lon}, nil
}

func parseCoordinate(s string, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("out of range: %v", v)
	}
	return v, nil
}

func parseVisit(row int, rec models.StopTime) (StopVisit, error) {
	v := StopVisit{
		TripID:   strings.TrimSpace(rec.TripID),
		StopID:   strings.TrimSpace(rec.StopID),
		Sequence: rec.StopSequence,
	}
	switch {
	case v.TripID == "":
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "trip_id", Reason: "required"}
	case v.StopID == "":
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "stop_id", Reason: "required"}
	case v.Sequence < 0:
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "stop_sequence", Reason: "negative"}
	}

	arr, dep := strings.TrimSpace(rec.ArrivalTime), strings.TrimSpace(rec.DepartureTime)
	if arr == "" && dep == "" {
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "arrival_time", Reason: "arrival and departure both missing"}
	}
	// a visit with one side given dwells for zero seconds
	if arr == "" {
		arr = dep
	}
	if dep == "" {
		dep = arr
	}

	var err error
	if v.Arrival, err = ParseTime(arr); err != nil {
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "arrival_time", Reason: err.Error()}
	}
	if v.Departure, err = ParseTime(dep); err != nil {
		return v, &SchemaError{Table: "stop_times", Row: row, Field: "departure_time", Reason: err.Error()}
	}
	return v, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TripStopSequence returns a copy of the trip's visits in sequence order.
func (s *Store) TripStopSequence(tripID string) ([]StopVisit, error) {
	if _, ok := s.trips[tripID]; !ok {
		return nil, &NotFoundError{Kind: "trip", ID: tripID}
	}
	seq := s.visits[tripID]
	out := make([]StopVisit, len(seq))
	copy(out, seq)
	return out, nil
}

// StopsNear returns the ids of all stops within radiusMeters of the point,
// sorted ascending. A bounding box on the latitude-sorted index narrows the
// candidates before the great-circle check.
func (s *Store) StopsNear(lat, lon, radiusMeters float64) []string {
	if radiusMeters < 0 {
		return nil
	}
	minLat, maxLat, minLon, maxLon, noLon := boundingBox(lat, lon, radiusMeters)

	start := sort.Search(len(s.byLat), func(i int) bool { return s.byLat[i].Lat >= minLat })
	var ids []string
	for i := start; i < len(s.byLat) && s.byLat[i].Lat <= maxLat; i++ {
		stop := s.byLat[i]
		if !noLon && (stop.Lon < minLon || stop.Lon > maxLon) {
			continue
		}
		if Distance(lat, lon, stop.Lat, stop.Lon) <= radiusMeters {
			ids = append(ids, stop.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Stop(id string) (*Stop, bool) {
	stop, ok := s.stops[id]
	return stop, ok
}

func (s *Store) Route(id string) (*Route, bool) {
	route, ok := s.routes[id]
	return route, ok
}

func (s *Store) Trip(id string) (*Trip, bool) {
	trip, ok := s.trips[id]
	return trip, ok
}

// Stops returns every stop ordered by id.
func (s *Store) Stops() []*Stop {
	out := make([]*Stop, len(s.stopIDs))
	for i, id := range s.stopIDs {
		out[i] = s.stops[id]
	}
	return out
}

// Trips returns every trip ordered by id.
func (s *Store) Trips() []*Trip {
	out := make([]*Trip, len(s.tripIDs))
	for i, id := range s.tripIDs {
		out[i] = s.trips[id]
	}
	return out
}

func (s *Store) StopCount() int  { return len(s.stops) }
func (s *Store) RouteCount() int { return len(s.routes) }
func (s *Store) TripCount() int  { return len(s.trips) }
