package models

import (
	"sort"
	"time"
)

// Timetable is the set of parsed tables handed to the schedule store.
type Timetable struct {
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Calendars     []Calendar
	CalendarDates []CalendarDate
}

// ActiveServiceIDs evaluates calendar.txt and calendar_dates.txt for a single
// service day. Weekday flags apply inside [start_date, end_date]; exceptions
// of type 1 add a service and type 2 remove it.
func (tt *Timetable) ActiveServiceIDs(day time.Time) []string {
	active := make(map[string]bool)

	for _, c := range tt.Calendars {
		if c.StartDate.IsZero() || c.EndDate.IsZero() {
			continue
		}
		start := c.StartDate.Time
		end := c.EndDate.Time
		d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		if d.Before(start) || d.After(end) {
			continue
		}
		if c.runsOn(d.Weekday()) {
			active[c.ServiceID] = true
		}
	}

	for _, cd := range tt.CalendarDates {
		if !cd.Date.SameDay(day) {
			continue
		}
		switch cd.ExceptionType {
		case ServiceAdded:
			active[cd.ServiceID] = true
		case ServiceRemoved:
			delete(active, cd.ServiceID)
		}
	}

	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c Calendar) runsOn(wd time.Weekday) bool {
	flags := [7]int{c.Sunday, c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday}
	return flags[wd] == 1
}

// FilterServices returns a copy that keeps only trips whose service id is in
// serviceIDs, along with their stop times. Stops and routes are kept whole.
func (tt *Timetable) FilterServices(serviceIDs []string) *Timetable {
	keep := make(map[string]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		keep[id] = true
	}

	out := &Timetable{
		Stops:         tt.Stops,
		Routes:        tt.Routes,
		Calendars:     tt.Calendars,
		CalendarDates: tt.CalendarDates,
	}
	trips := make(map[string]bool)
	for _, trip := range tt.Trips {
		if keep[trip.ServiceID] {
			out.Trips = append(out.Trips, trip)
			trips[trip.TripID] = true
		}
	}
	for _, st := range tt.StopTimes {
		if trips[st.TripID] {
			out.StopTimes = append(out.StopTimes, st)
		}
	}
	return out
}
