package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptvtracker-planner/internal/schedule"
	"github.com/ptvtracker-planner/internal/search"
)

var at = schedule.MustParseTime

func TestWriteJourney(t *testing.T) {
	j := &search.Journey{
		Origin: "X", Destination: "W", DepartAt: at("07:50:00"), Found: true, Arrival: at("08:20:00"),
		Legs: []search.Leg{
			{Kind: search.Ride, From: "X", To: "Y", Departure: at("08:00:00"), Arrival: at("08:05:00"), TripID: "T1", RouteID: "R1"},
			{Kind: search.Ride, From: "Y", To: "Z", Departure: at("08:05:00"), Arrival: at("08:10:00"), TripID: "T1", RouteID: "R1"},
			{Kind: search.Walk, From: "Z", To: "W", Departure: at("08:10:00"), Arrival: at("08:20:00")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeJourney(&buf, j))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "X -> W: depart 07:50:00, arrive 08:20:00 (30m0s, 1 boardings)", lines[0])
	assert.Contains(t, lines[1], "X -> Z")
	assert.Contains(t, lines[1], "trip T1 (route R1)")
	assert.Contains(t, lines[2], "walk")
}

func TestWriteJourneyNoRoute(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJourney(&buf, &search.Journey{Origin: "X", Destination: "Z", DepartAt: at("23:00:00")}))
	assert.Equal(t, "no route from X to Z departing 23:00:00\n", buf.String())
}

func TestWriteReachability(t *testing.T) {
	r := &search.Reachability{
		Origin:   "X",
		DepartAt: at("07:50:00"),
		Budget:   50 * time.Minute,
		Arrivals: map[string]schedule.Time{"X": at("07:50:00"), "Y": at("08:05:00")},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReachability(&buf, r))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "2 stops reachable from X within 50m0s of 07:50:00\n"))
	assert.Contains(t, out, "+15m0s")
	assert.Less(t, strings.Index(out, "  X"), strings.Index(out, "  Y"))
}
