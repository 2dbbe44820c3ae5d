package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ptvtracker-planner/pkg/gtfs-static/models"
)

// LoadTimetable reads every table imported under versionID.
func (db *DB) LoadTimetable(ctx context.Context, versionID int) (*models.Timetable, error) {
	tt := &models.Timetable{}

	err := db.queryRows(ctx, `
		SELECT stop_id, stop_name, stop_lat, stop_lon
		FROM planner.stops WHERE version_id = $1 ORDER BY stop_id`, versionID,
		func(rows *sql.Rows) error {
			var s models.Stop
			if err := rows.Scan(&s.StopID, &s.StopName, &s.StopLat, &s.StopLon); err != nil {
				return err
			}
			tt.Stops = append(tt.Stops, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading stops: %w", err)
	}

	err = db.queryRows(ctx, `
		SELECT route_id, agency_id, route_short_name, route_long_name, route_type
		FROM planner.routes WHERE version_id = $1 ORDER BY route_id`, versionID,
		func(rows *sql.Rows) error {
			var r models.Route
			if err := rows.Scan(&r.RouteID, &r.AgencyID, &r.RouteShortName, &r.RouteLongName, &r.RouteType); err != nil {
				return err
			}
			tt.Routes = append(tt.Routes, r)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}

	err = db.queryRows(ctx, `
		SELECT trip_id, route_id, service_id, trip_headsign, direction_id
		FROM planner.trips WHERE version_id = $1 ORDER BY trip_id`, versionID,
		func(rows *sql.Rows) error {
			var t models.Trip
			if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.DirectionID); err != nil {
				return err
			}
			tt.Trips = append(tt.Trips, t)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading trips: %w", err)
	}

	err = db.queryRows(ctx, `
		SELECT trip_id, stop_id, stop_sequence, arrival_time, departure_time
		FROM planner.stop_times WHERE version_id = $1 ORDER BY trip_id, stop_sequence`, versionID,
		func(rows *sql.Rows) error {
			var st models.StopTime
			if err := rows.Scan(&st.TripID, &st.StopID, &st.StopSequence, &st.ArrivalTime, &st.DepartureTime); err != nil {
				return err
			}
			tt.StopTimes = append(tt.StopTimes, st)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading stop_times: %w", err)
	}

	err = db.queryRows(ctx, `
		SELECT service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, start_date, end_date
		FROM planner.calendar WHERE version_id = $1 ORDER BY service_id`, versionID,
		func(rows *sql.Rows) error {
			var c models.Calendar
			var start, end sql.NullTime
			if err := rows.Scan(&c.ServiceID, &c.Monday, &c.Tuesday, &c.Wednesday, &c.Thursday,
				&c.Friday, &c.Saturday, &c.Sunday, &start, &end); err != nil {
				return err
			}
			c.StartDate = dateOf(start)
			c.EndDate = dateOf(end)
			tt.Calendars = append(tt.Calendars, c)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading calendar: %w", err)
	}

	err = db.queryRows(ctx, `
		SELECT service_id, date, exception_type
		FROM planner.calendar_dates WHERE version_id = $1 ORDER BY service_id, date`, versionID,
		func(rows *sql.Rows) error {
			var cd models.CalendarDate
			var date sql.NullTime
			if err := rows.Scan(&cd.ServiceID, &date, &cd.ExceptionType); err != nil {
				return err
			}
			cd.Date = dateOf(date)
			tt.CalendarDates = append(tt.CalendarDates, cd)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("loading calendar_dates: %w", err)
	}

	db.logger.Info("Loaded timetable from database",
		"version_id", versionID,
		"stops", len(tt.Stops),
		"trips", len(tt.Trips),
		"stop_times", len(tt.StopTimes))
	return tt, nil
}

func (db *DB) queryRows(ctx context.Context, query string, versionID int, scan func(*sql.Rows) error) error {
	rows, err := db.conn.QueryContext(ctx, query, versionID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func dateOf(t sql.NullTime) models.Date {
	if !t.Valid {
		return models.Date{}
	}
	y, m, d := t.Time.Date()
	return models.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}
