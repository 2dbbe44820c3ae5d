package models

// Raw GTFS rows as they appear in the feed. Values are kept as text where the
// schedule store is responsible for validating them.

type Stop struct {
	StopID   string `csv:"stop_id"`
	StopName string `csv:"stop_name"`
	StopLat  string `csv:"stop_lat"`
	StopLon  string `csv:"stop_lon"`
}

type Route struct {
	RouteID        string `csv:"route_id"`
	AgencyID       string `csv:"agency_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteType      int    `csv:"route_type"`
}

type Trip struct {
	TripID       string `csv:"trip_id"`
	RouteID      string `csv:"route_id"`
	ServiceID    string `csv:"service_id"`
	TripHeadsign string `csv:"trip_headsign"`
	DirectionID  int    `csv:"direction_id"`
}

type StopTime struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`   // Format: HH:MM:SS, may exceed 24:00:00
	DepartureTime string `csv:"departure_time"` // Format: HH:MM:SS, may exceed 24:00:00
}

type Calendar struct {
	ServiceID string `csv:"service_id"`
	Monday    int    `csv:"monday"`
	Tuesday   int    `csv:"tuesday"`
	Wednesday int    `csv:"wednesday"`
	Thursday  int    `csv:"thursday"`
	Friday    int    `csv:"friday"`
	Saturday  int    `csv:"saturday"`
	Sunday    int    `csv:"sunday"`
	StartDate Date   `csv:"start_date"`
	EndDate   Date   `csv:"end_date"`
}

// Exception types used by calendar_dates.txt.
const (
	ServiceAdded   = 1
	ServiceRemoved = 2
)

type CalendarDate struct {
	ServiceID     string `csv:"service_id"`
	Date          Date   `csv:"date"`
	ExceptionType int    `csv:"exception_type"`
}
