package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the GTFS service date format.
const DateLayout = "20060102"

// Date is a GTFS service date (YYYYMMDD) at midnight UTC.
type Date struct {
	time.Time
}

// ParseDate parses a YYYYMMDD service date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid service date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// UnmarshalCSV lets gocsv decode date columns directly.
func (d *Date) UnmarshalCSV(s string) error {
	if strings.TrimSpace(s) == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalCSV() (string, error) {
	return d.String(), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// SameDay reports whether d falls on the calendar day of t, ignoring location.
func (d Date) SameDay(t time.Time) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
