package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestActiveServiceIDs(t *testing.T) {
	tt := &Timetable{
		Calendars: []Calendar{
			{ServiceID: "WKDY", Monday: 1, Tuesday: 1, Wednesday: 1, Thursday: 1, Friday: 1,
				StartDate: mustDate(t, "20260101"), EndDate: mustDate(t, "20261231")},
			{ServiceID: "WKND", Saturday: 1, Sunday: 1,
				StartDate: mustDate(t, "20260101"), EndDate: mustDate(t, "20261231")},
			{ServiceID: "OLD", Monday: 1,
				StartDate: mustDate(t, "20250101"), EndDate: mustDate(t, "20251231")},
		},
		CalendarDates: []CalendarDate{
			{ServiceID: "WKDY", Date: mustDate(t, "20261012"), ExceptionType: ServiceRemoved},
			{ServiceID: "XTRA", Date: mustDate(t, "20261012"), ExceptionType: ServiceAdded},
		},
	}

	tests := []struct {
		name string
		day  string
		want []string
	}{
		{"weekday", "20261013", []string{"WKDY"}},
		{"weekend", "20261017", []string{"WKND"}},
		{"holiday exception", "20261012", []string{"XTRA"}},
		{"outside any range", "20270105", []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tt.ActiveServiceIDs(mustDate(t, tc.day).Time)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilterServices(t *testing.T) {
	tt := &Timetable{
		Stops: []Stop{{StopID: "A"}, {StopID: "B"}},
		Trips: []Trip{
			{TripID: "T1", ServiceID: "WKDY"},
			{TripID: "T2", ServiceID: "WKND"},
		},
		StopTimes: []StopTime{
			{TripID: "T1", StopID: "A", StopSequence: 1},
			{TripID: "T2", StopID: "A", StopSequence: 1},
			{TripID: "T1", StopID: "B", StopSequence: 2},
		},
	}

	out := tt.FilterServices([]string{"WKDY"})
	require.Len(t, out.Trips, 1)
	assert.Equal(t, "T1", out.Trips[0].TripID)
	assert.Len(t, out.StopTimes, 2)
	assert.Len(t, out.Stops, 2)
	assert.Len(t, tt.Trips, 2, "source timetable must be left untouched")
}

func TestDateUnmarshalCSV(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalCSV("20261014"))
	assert.True(t, d.SameDay(time.Date(2026, 10, 14, 18, 0, 0, 0, time.UTC)))
	assert.Equal(t, "20261014", d.String())

	require.NoError(t, d.UnmarshalCSV(""))
	assert.True(t, d.IsZero())

	assert.Error(t, d.UnmarshalCSV("2026-10-14"))
}
