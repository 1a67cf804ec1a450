// Package datemath implements the calendar arithmetic shared by the timeline:
// date markers, half-open ranges, structured durations and the calendar
// environment (display timezone and week start).
//
// A marker is a time.Time in UTC whose wall clock equals the wall clock of
// the display timezone. Keeping every marker in a single zone makes day and
// month arithmetic exact: there are no DST gaps inside marker space.
package datemath

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

var (
	// wallLayouts carry no zone and are read as display-zone wall clock.
	wallLayouts = []struct {
		layout  string
		hasTime bool
	}{
		{"2006-01-02T15:04:05.000", true},
		{"2006-01-02T15:04:05", true},
		{"2006-01-02T15:04", true},
		{"2006-01-02 15:04:05", true},
		{"2006-01-02 15:04", true},
		{"2006-01-02", false},
		{"2006-01", false},
		{"2006", false},
	}

	// zonedLayouts name an absolute instant which is converted into the
	// display zone.
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
	}
)

// ParseMarker parses s as a marker in the UTC environment. See Env.ParseMarker.
func ParseMarker(s string) (time.Time, bool, error) {
	return Env{}.ParseMarker(s)
}

// ParseMarker parses a configuration date string into a marker. The boolean
// reports whether the string carried a time of day; a date-only string such as
// "2017-06-07" denotes the whole day starting at midnight, "2017-01" the first
// of the month.
func (e Env) ParseMarker(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("datemath: empty date")
	}
	for _, l := range wallLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t.UTC(), l.hasTime, nil
		}
	}
	for _, l := range zonedLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return e.ToMarker(t), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("datemath: unrecognized date %q", s)
}

// FormatMarker renders a marker the way it is accepted by ParseMarker,
// dropping the time part at midnight.
func FormatMarker(m time.Time) string {
	if m.Equal(StartOfDay(m)) {
		return m.Format("2006-01-02")
	}
	if m.Nanosecond() != 0 {
		return m.Format("2006-01-02T15:04:05.000")
	}
	return m.Format("2006-01-02T15:04:05")
}

// StartOfDay returns midnight of the marker's day.
func StartOfDay(m time.Time) time.Time {
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMidnight reports whether the marker has no time-of-day component.
func IsMidnight(m time.Time) bool {
	return m.Equal(StartOfDay(m))
}
