package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Time is a service time in seconds since midnight of the service day.
// It is not bounded by 24h: 25:30:00 is 91800 and never wraps.
type Time int

// Day is one service day in seconds.
const Day Time = 24 * 60 * 60

// ParseTime parses H:MM:SS or HH:MM:SS, allowing hours past 23.
func ParseTime(s string) (Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	var fields [3]int
	for i, p := range parts {
		if p == "" || len(p) > 3 {
			return 0, fmt.Errorf("invalid time format: %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time format: %q", s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	return Time(fields[0]*3600 + fields[1]*60 + fields[2]), nil
}

// MustParseTime is ParseTime for literals known to be valid.
func MustParseTime(s string) Time {
	t, err := ParseTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromDuration converts a duration to whole seconds, truncating.
func FromDuration(d time.Duration) Time {
	return Time(d / time.Second)
}

// Duration converts t to a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t) * time.Second
}

func (t Time) String() string {
	sign := ""
	v := int(t)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, v/3600, (v/60)%60, v%60)
}

func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Time) UnmarshalText(b []byte) error {
	parsed, err := ParseTime(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
