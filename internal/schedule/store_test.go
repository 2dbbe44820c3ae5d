package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

func sampleTables() ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
	stops := []models.Stop{
		{StopID: "X", StopName: "Xavier St", StopLat: "-37.8100", StopLon: "144.9600"},
		{StopID: "Y", StopName: "Young St", StopLat: "-37.8200", StopLon: "144.9600"},
		{StopID: "Z", StopName: "Zeal St", StopLat: "-37.8300", StopLon: "144.9600"},
	}
	routes := []models.Route{{RouteID: "R1", RouteShortName: "86"}}
	trips := []models.Trip{{TripID: "T1", RouteID: "R1", ServiceID: "WKDY"}}
	visits := []models.StopTime{
		{TripID: "T1", StopID: "Z", StopSequence: 3, ArrivalTime: "08:25:00", DepartureTime: "08:25:00"},
		{TripID: "T1", StopID: "X", StopSequence: 1, ArrivalTime: "08:00:00", DepartureTime: "08:00:00"},
		{TripID: "T1", StopID: "Y", StopSequence: 2, ArrivalTime: "08:10:00", DepartureTime: "08:10:00"},
	}
	return stops, routes, trips, visits
}

func TestLoadAndTripStopSequence(t *testing.T) {
	store, err := Load(sampleTables())
	require.NoError(t, err)

	assert.Equal(t, 3, store.StopCount())
	assert.Equal(t, 1, store.RouteCount())
	assert.Equal(t, 1, store.TripCount())

	seq, err := store.TripStopSequence("T1")
	require.NoError(t, err)
	require.Len(t, seq, 3)
	assert.Equal(t, []string{"X", "Y", "Z"}, []string{seq[0].StopID, seq[1].StopID, seq[2].StopID})
	assert.Equal(t, MustParseTime("08:10:00"), seq[1].Arrival)

	seq[0].StopID = "mutated"
	again, _ := store.TripStopSequence("T1")
	assert.Equal(t, "X", again[0].StopID)
}

func TestTripStopSequenceUnknown(t *testing.T) {
	store, err := Load(sampleTables())
	require.NoError(t, err)

	_, err = store.TripStopSequence("nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "trip", nf.Kind)
	assert.Equal(t, "nope", nf.ID)
}

func TestLoadSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime)
		field string
	}{
		{"missing stop id", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			s[0].StopID = " "
			return s, r, tr, v
		}, "stop_id"},
		{"latitude not a number", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			s[1].StopLat = "north"
			return s, r, tr, v
		}, "stop_lat"},
		{"longitude out of range", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			s[1].StopLon = "200"
			return s, r, tr, v
		}, "stop_lon"},
		{"duplicate stop", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			return append(s, s[0]), r, tr, v
		}, "stop_id"},
		{"trip without route", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			tr[0].RouteID = ""
			return s, r, tr, v
		}, "route_id"},
		{"bad time", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			v[0].ArrivalTime = "8am"
			return s, r, tr, v
		}, "arrival_time"},
		{"no times", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			v[0].ArrivalTime, v[0].DepartureTime = "", ""
			return s, r, tr, v
		}, "arrival_time"},
		{"duplicate sequence", func(s []models.Stop, r []models.Route, tr []models.Trip, v []models.StopTime) ([]models.Stop, []models.Route, []models.Trip, []models.StopTime) {
			v[0].StopSequence = 1
			return s, r, tr, v
		}, "stop_sequence"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.mod(sampleTables()))
			var se *SchemaError
			require.True(t, errors.As(err, &se), "expected SchemaError, got %v", err)
			assert.Equal(t, tc.field, se.Field)
		})
	}
}

func TestLoadReferentialErrors(t *testing.T) {
	t.Run("unknown stop", func(t *testing.T) {
		s, r, tr, v := sampleTables()
		v[1].StopID = "Q"
		_, err := Load(s, r, tr, v)
		var re *ReferentialError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "stop_id", re.Field)
		assert.Equal(t, "Q", re.Value)
	})
	t.Run("unknown trip", func(t *testing.T) {
		s, r, tr, v := sampleTables()
		v[2].TripID = "T9"
		_, err := Load(s, r, tr, v)
		var re *ReferentialError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "trip_id", re.Field)
	})
	t.Run("unknown route", func(t *testing.T) {
		s, r, tr, v := sampleTables()
		tr[0].RouteID = "R9"
		_, err := Load(s, r, tr, v)
		var re *ReferentialError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "trips", re.Table)
	})
}

func TestMissingSideCopiesOther(t *testing.T) {
	s, r, tr, v := sampleTables()
	v[2].DepartureTime = ""
	store, err := Load(s, r, tr, v)
	require.NoError(t, err)

	seq, _ := store.TripStopSequence("T1")
	assert.Equal(t, seq[1].Arrival, seq[1].Departure)
}

func TestStopsNear(t *testing.T) {
	stops := []models.Stop{
		{StopID: "A", StopLat: "-37.8000", StopLon: "144.9000"},
		// ~222 m north of A
		{StopID: "B", StopLat: "-37.7980", StopLon: "144.9000"},
		// ~880 m east of A
		{StopID: "C", StopLat: "-37.8000", StopLon: "144.9100"},
		{StopID: "D", StopLat: "-37.9000", StopLon: "144.9000"},
	}
	store, err := Load(stops, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, store.StopsNear(-37.8, 144.9, 300))
	assert.Equal(t, []string{"A", "B", "C"}, store.StopsNear(-37.8, 144.9, 1000))
	assert.Equal(t, []string{"A"}, store.StopsNear(-37.8, 144.9, 0))
	assert.Empty(t, store.StopsNear(-37.8, 144.9, -1))

	// symmetric for every pair
	for _, a := range store.Stops() {
		for _, b := range store.StopsNear(a.Lat, a.Lon, 900) {
			other, _ := store.Stop(b)
			assert.Contains(t, store.StopsNear(other.Lat, other.Lon, 900), a.ID)
		}
	}
}

func TestDistance(t *testing.T) {
	// one degree of latitude
	d := Distance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 5)
	assert.Zero(t, Distance(-37.8, 144.9, -37.8, 144.9))
}
