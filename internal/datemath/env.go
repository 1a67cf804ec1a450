package datemath

import (
	"fmt"
	"strings"
	"time"
)

// Env carries the calendar settings every date computation depends on.
// The zero value is a UTC calendar whose weeks start on Sunday.
type Env struct {
	// Location is the display timezone markers are expressed in.
	Location *time.Location
	// FirstDay is the weekday weeks start on.
	FirstDay time.Weekday
}

// NewEnv resolves an IANA timezone name and a weekday name ("monday",
// "sun", ...). An empty timezone means UTC.
func NewEnv(timezone, weekStart string) (Env, error) {
	env := Env{Location: time.UTC, FirstDay: time.Monday}
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Env{}, fmt.Errorf("datemath: timezone %q: %w", timezone, err)
		}
		env.Location = loc
	}
	if weekStart != "" {
		wd, err := ParseWeekday(weekStart)
		if err != nil {
			return Env{}, err
		}
		env.FirstDay = wd
	}
	return env, nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return time.Sunday, fmt.Errorf("datemath: unknown weekday %q", s)
}

func (e Env) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// ToMarker converts an absolute instant into a marker carrying the display
// zone's wall clock.
func (e Env) ToMarker(t time.Time) time.Time {
	lt := t.In(e.loc())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), time.UTC)
}

// FromMarker converts a marker back into an instant in the display zone.
func (e Env) FromMarker(m time.Time) time.Time {
	return time.Date(m.Year(), m.Month(), m.Day(), m.Hour(), m.Minute(), m.Second(), m.Nanosecond(), e.loc())
}

// Add applies d to marker m.
func (e Env) Add(m time.Time, d Duration) time.Time {
	return d.AddTo(m)
}

// StartOf floors m to the given unit. Weeks start on e.FirstDay.
func (e Env) StartOf(m time.Time, unit Unit) time.Time {
	switch unit {
	case UnitYear:
		return time.Date(m.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case UnitMonth:
		return time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	case UnitWeek:
		back := (int(m.Weekday()) - int(e.FirstDay) + 7) % 7
		return StartOfDay(m).AddDate(0, 0, -back)
	case UnitDay:
		return StartOfDay(m)
	case UnitHour:
		return m.Truncate(time.Hour)
	case UnitMinute:
		return m.Truncate(time.Minute)
	case UnitSecond:
		return m.Truncate(time.Second)
	default:
		return m
	}
}

// IsWeekStart reports whether m is midnight on the configured first day.
func (e Env) IsWeekStart(m time.Time) bool {
	return IsMidnight(m) && m.Weekday() == e.FirstDay
}
