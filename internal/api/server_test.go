package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptvtracker-planner/internal/common/logger"
	"github.com/ptvtracker-planner/internal/planner"
	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

func timetable() *models.Timetable {
	return &models.Timetable{
		Stops: []models.Stop{
			{StopID: "X", StopName: "Flinders Street", StopLat: "-37.8000", StopLon: "144.9000"},
			{StopID: "Y", StopName: "Richmond", StopLat: "-37.8200", StopLon: "144.9000"},
			{StopID: "Z", StopName: "South Yarra", StopLat: "-37.8400", StopLon: "144.9000"},
		},
		Routes: []models.Route{{RouteID: "R1", RouteShortName: "Sandringham"}},
		Trips:  []models.Trip{{TripID: "T1", RouteID: "R1", TripHeadsign: "Sandringham"}},
		StopTimes: []models.StopTime{
			{TripID: "T1", StopID: "X", StopSequence: 1, ArrivalTime: "08:00:00", DepartureTime: "08:00:00"},
			{TripID: "T1", StopID: "Y", StopSequence: 2, ArrivalTime: "08:10:00", DepartureTime: "08:11:00"},
			{TripID: "T1", StopID: "Z", StopSequence: 3, ArrivalTime: "08:25:00", DepartureTime: "08:25:00"},
		},
	}
}

func newTestApp(t *testing.T, loaded bool) *Server {
	t.Helper()
	svc := planner.NewService(planner.Options{
		WalkingSpeedMetersPerMinute: 80,
		TransferRadiusMeters:        300,
		MaxBudget:                   2 * time.Hour,
	}, logger.Nop())
	if loaded {
		_, err := svc.Reload(context.Background(), "v1", timetable())
		require.NoError(t, err)
	}
	return NewServer(":0", svc, logger.Nop())
}

func get(t *testing.T, s *Server, target string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func TestNotReady(t *testing.T) {
	s := newTestApp(t, false)

	code, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body["error"], "no timetable")

	code, _ = get(t, s, "/v1/journeys?from=X&to=Z&depart=07:50:00")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealth(t *testing.T) {
	code, body := get(t, newTestApp(t, true), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1", body["version"])
	assert.EqualValues(t, 3, body["stops"])
	assert.EqualValues(t, 2, body["connections"])
}

func TestJourneyFound(t *testing.T) {
	code, body := get(t, newTestApp(t, true), "/v1/journeys?from=X&to=Z&depart=07:50:00")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, true, body["found"])
	assert.Equal(t, "08:25:00", body["arrival"])
	assert.Equal(t, "35m0s", body["duration"])
	assert.EqualValues(t, 1, body["boardings"])

	legs := body["legs"].([]interface{})
	require.Len(t, legs, 1)
	leg := legs[0].(map[string]interface{})
	assert.Equal(t, "ride", leg["kind"])
	assert.Equal(t, "Flinders Street", leg["from_name"])
	assert.Equal(t, "South Yarra", leg["to_name"])
	assert.Equal(t, "08:00:00", leg["departure"])
	assert.Equal(t, "Sandringham", leg["route"])
}

func TestJourneyNotFoundIsNotAnError(t *testing.T) {
	code, body := get(t, newTestApp(t, true), "/v1/journeys?from=X&to=Z&depart=08:05:00")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["found"])
	assert.NotContains(t, body, "arrival")
	assert.Empty(t, body["legs"])
}

func TestRequestErrors(t *testing.T) {
	s := newTestApp(t, true)
	tests := map[string]struct {
		target string
		code   int
	}{
		"unknown origin":     {"/v1/journeys?from=NOPE&to=Z&depart=07:50:00", http.StatusNotFound},
		"missing to":         {"/v1/journeys?from=X&depart=07:50:00", http.StatusBadRequest},
		"bad depart":         {"/v1/journeys?from=X&to=Z&depart=noon", http.StatusBadRequest},
		"missing depart":     {"/v1/reachable?from=X&budget=10m", http.StatusBadRequest},
		"bad budget":         {"/v1/reachable?from=X&depart=07:50:00&budget=soon", http.StatusBadRequest},
		"negative budget":    {"/v1/reachable?from=X&depart=07:50:00&budget=-5m", http.StatusBadRequest},
		"budget over limit":  {"/v1/reachable?from=X&depart=07:50:00&budget=3h", http.StatusBadRequest},
		"unknown reach stop": {"/v1/reachable?from=NOPE&depart=07:50:00&budget=10m", http.StatusNotFound},
		"missing lat":        {"/v1/stops/near?lon=144.9", http.StatusBadRequest},
		"negative radius":    {"/v1/stops/near?lat=-37.8&lon=144.9&radius=-1", http.StatusBadRequest},
		"unknown route":      {"/v2/journeys", http.StatusNotFound},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			code, body := get(t, s, tc.target)
			assert.Equal(t, tc.code, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestReachable(t *testing.T) {
	code, body := get(t, newTestApp(t, true), "/v1/reachable?from=X&depart=07:50:00&budget=30m")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "30m0s", body["budget"])

	stops := body["stops"].([]interface{})
	require.Len(t, stops, 2)
	first := stops[0].(map[string]interface{})
	assert.Equal(t, "X", first["stop_id"])
	assert.Equal(t, "07:50:00", first["arrival"])
	second := stops[1].(map[string]interface{})
	assert.Equal(t, "Y", second["stop_id"])
	assert.Equal(t, "Richmond", second["name"])
}

// reloadingPlanner publishes a renamed timetable right after every Snapshot
// call, as a watcher reload landing mid-request would.
type reloadingPlanner struct {
	*planner.Service
	t *testing.T
}

func (p *reloadingPlanner) Snapshot() *planner.Snapshot {
	snap := p.Service.Snapshot()
	renamed := timetable()
	renamed.Stops[0].StopName = "Flinders Street (renamed)"
	renamed.Routes[0].RouteShortName = "Frankston"
	_, err := p.Service.Reload(context.Background(), "v2", renamed)
	require.NoError(p.t, err)
	return snap
}

func TestResponsesUseOneSnapshot(t *testing.T) {
	svc := planner.NewService(planner.Options{WalkingSpeedMetersPerMinute: 80, TransferRadiusMeters: 300}, logger.Nop())
	first, err := svc.Reload(context.Background(), "v1", timetable())
	require.NoError(t, err)
	s := NewServer(":0", &reloadingPlanner{Service: svc, t: t}, logger.Nop())

	code, body := get(t, s, "/v1/journeys?from=X&to=Z&depart=07:50:00")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.BuildID, body["build_id"])
	leg := body["legs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Flinders Street", leg["from_name"])
	assert.Equal(t, "Sandringham", leg["route"])

	before := svc.Snapshot()
	code, body = get(t, s, "/v1/reachable?from=X&depart=07:50:00&budget=30m")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, before.BuildID, body["build_id"])
	assert.NotEqual(t, svc.Snapshot().BuildID, body["build_id"])
	stop := body["stops"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Flinders Street (renamed)", stop["name"])
}

func TestStopsNear(t *testing.T) {
	code, body := get(t, newTestApp(t, true), "/v1/stops/near?lat=-37.8&lon=144.9&radius=100")
	require.Equal(t, http.StatusOK, code)
	stops := body["stops"].([]interface{})
	require.Len(t, stops, 1)
	assert.Equal(t, "X", stops[0].(map[string]interface{})["id"])

	code, body = get(t, newTestApp(t, true), "/v1/stops/near?lat=-37.8&lon=144.9")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["stops"], 1)
}
