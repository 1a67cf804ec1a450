package datemath

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Unit names a calendar unit, largest first.
type Unit string

const (
	UnitYear        Unit = "year"
	UnitMonth       Unit = "month"
	UnitWeek        Unit = "week"
	UnitDay         Unit = "day"
	UnitHour        Unit = "hour"
	UnitMinute      Unit = "minute"
	UnitSecond      Unit = "second"
	UnitMillisecond Unit = "millisecond"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Duration is a structured span. Years, months and days are calendar
// relative; Milliseconds is exact. SpecifiedWeeks remembers that the days
// were given as weeks so the duration classifies as a week unit.
type Duration struct {
	Years          int   `json:"years,omitempty"`
	Months         int   `json:"months,omitempty"`
	Days           int   `json:"days,omitempty"`
	Milliseconds   int64 `json:"milliseconds,omitempty"`
	SpecifiedWeeks bool  `json:"-"`
}

func Years(n int) Duration   { return Duration{Years: n} }
func Months(n int) Duration  { return Duration{Months: n} }
func Weeks(n int) Duration   { return Duration{Days: 7 * n, SpecifiedWeeks: true} }
func Days(n int) Duration    { return Duration{Days: n} }
func Hours(n int) Duration   { return Duration{Milliseconds: int64(n) * msPerHour} }
func Minutes(n int) Duration { return Duration{Milliseconds: int64(n) * msPerMinute} }
func Seconds(n int) Duration { return Duration{Milliseconds: int64(n) * msPerSecond} }

// FromStd converts an exact time.Duration, truncated to milliseconds.
func FromStd(d time.Duration) Duration {
	return Duration{Milliseconds: d.Milliseconds()}
}

// IsZero reports whether every field is zero.
func (d Duration) IsZero() bool {
	return d.Years == 0 && d.Months == 0 && d.Days == 0 && d.Milliseconds == 0
}

// HasTime reports whether the duration has a time-of-day component.
func (d Duration) HasTime() bool {
	return d.Milliseconds != 0
}

// AsRoughMs approximates the span with 365-day years and 30-day months.
func (d Duration) AsRoughMs() int64 {
	return int64(d.Years)*365*msPerDay +
		int64(d.Months)*30*msPerDay +
		int64(d.Days)*msPerDay +
		d.Milliseconds
}

// Multiply scales every field by n.
func (d Duration) Multiply(n int) Duration {
	return Duration{
		Years:          d.Years * n,
		Months:         d.Months * n,
		Days:           d.Days * n,
		Milliseconds:   d.Milliseconds * int64(n),
		SpecifiedWeeks: d.SpecifiedWeeks,
	}
}

// Plus sums two durations field by field.
func (d Duration) Plus(o Duration) Duration {
	return Duration{
		Years:          d.Years + o.Years,
		Months:         d.Months + o.Months,
		Days:           d.Days + o.Days,
		Milliseconds:   d.Milliseconds + o.Milliseconds,
		SpecifiedWeeks: d.SpecifiedWeeks && o.SpecifiedWeeks,
	}
}

// AddTo applies the calendar fields, then the exact milliseconds.
func (d Duration) AddTo(m time.Time) time.Time {
	if d.Years != 0 || d.Months != 0 || d.Days != 0 {
		m = m.AddDate(d.Years, d.Months, d.Days)
	}
	return m.Add(time.Duration(d.Milliseconds) * time.Millisecond)
}

// Denominator returns the largest unit d is a whole multiple of, and how
// many of that unit it holds.
func (d Duration) Denominator() (Unit, int64) {
	if ms := d.Milliseconds; ms != 0 {
		switch {
		case ms%msPerSecond != 0:
			return UnitMillisecond, ms
		case ms%msPerMinute != 0:
			return UnitSecond, ms / msPerSecond
		case ms%msPerHour != 0:
			return UnitMinute, ms / msPerMinute
		default:
			return UnitHour, ms / msPerHour
		}
	}
	if d.Days != 0 {
		if d.SpecifiedWeeks && d.Days%7 == 0 {
			return UnitWeek, int64(d.Days / 7)
		}
		return UnitDay, int64(d.Days)
	}
	if d.Months != 0 {
		return UnitMonth, int64(d.Months)
	}
	if d.Years != 0 {
		return UnitYear, int64(d.Years)
	}
	return UnitMillisecond, 0
}

// WholeDivide returns num/den when every field of num is the same whole
// multiple of the matching field of den.
func WholeDivide(num, den Duration) (int, bool) {
	type pair struct{ n, d int64 }
	fields := []pair{
		{int64(num.Years), int64(den.Years)},
		{int64(num.Months), int64(den.Months)},
		{int64(num.Days), int64(den.Days)},
		{num.Milliseconds, den.Milliseconds},
	}
	res := int64(-1)
	for _, f := range fields {
		if f.d == 0 {
			if f.n != 0 {
				return 0, false
			}
			continue
		}
		if f.n%f.d != 0 {
			return 0, false
		}
		q := f.n / f.d
		if res != -1 && q != res {
			return 0, false
		}
		res = q
	}
	if res < 0 {
		return 0, false
	}
	return int(res), true
}

// Between returns the span from a to b. All-day spans between midnights are
// expressed in calendar days, everything else in exact milliseconds.
func Between(a, b time.Time, allDay bool) Duration {
	if allDay && IsMidnight(a) && IsMidnight(b) {
		return Days(int(b.Sub(a).Round(day) / day))
	}
	return Duration{Milliseconds: b.Sub(a).Milliseconds()}
}

var (
	clockRe     = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d+):(\d\d)(?::(\d\d)(?:\.(\d\d\d))?)?$`)
	shorthandRe = regexp.MustCompile(`^(\d+)(y|mo|w|d)$`)
)

// ParseDuration accepts "01:30", "01:30:00", "01:30:00.500", "1.02:00"
// (days.hours:minutes), Go durations such as "90m", the shorthands
// "1y", "2mo", "1w", "3d", and whitespace-separated sums of those. The empty
// string yields the zero duration.
func ParseDuration(s string) (Duration, error) {
	var out Duration
	fields := strings.Fields(s)
	for i, f := range fields {
		d, err := parseDurationToken(f)
		if err != nil {
			return Duration{}, err
		}
		out = out.Plus(d)
		if i == 0 {
			out.SpecifiedWeeks = d.SpecifiedWeeks
		}
	}
	return out, nil
}

func parseDurationToken(s string) (Duration, error) {
	if m := clockRe.FindStringSubmatch(s); m != nil {
		sign := int64(1)
		if m[1] == "-" {
			sign = -1
		}
		days := atoiOrZero(m[2])
		ms := atoiOrZero(m[3])*msPerHour + atoiOrZero(m[4])*msPerMinute +
			atoiOrZero(m[5])*msPerSecond + atoiOrZero(m[6])
		return Duration{Days: int(sign * days), Milliseconds: sign * ms}, nil
	}
	if m := shorthandRe.FindStringSubmatch(s); m != nil {
		n := int(atoiOrZero(m[1]))
		switch m[2] {
		case "y":
			return Years(n), nil
		case "mo":
			return Months(n), nil
		case "w":
			return Weeks(n), nil
		default:
			return Days(n), nil
		}
	}
	if std, err := time.ParseDuration(s); err == nil {
		return FromStd(std), nil
	}
	return Duration{}, fmt.Errorf("datemath: invalid duration %q", s)
}

func atoiOrZero(s string) int64 {
	if s == "" {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// String renders the duration in a form ParseDuration reads back.
func (d Duration) String() string {
	parts := make([]string, 0, 4)
	if d.Years != 0 {
		parts = append(parts, fmt.Sprintf("%dy", d.Years))
	}
	if d.Months != 0 {
		parts = append(parts, fmt.Sprintf("%dmo", d.Months))
	}
	if d.Days != 0 {
		if d.SpecifiedWeeks && d.Days%7 == 0 {
			parts = append(parts, fmt.Sprintf("%dw", d.Days/7))
		} else {
			parts = append(parts, fmt.Sprintf("%dd", d.Days))
		}
	}
	if d.Milliseconds != 0 || len(parts) == 0 {
		parts = append(parts, formatClock(d.Milliseconds))
	}
	return strings.Join(parts, " ")
}

func formatClock(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	h := ms / msPerHour
	m := ms % msPerHour / msPerMinute
	s := ms % msPerMinute / msPerSecond
	frac := ms % msPerSecond
	switch {
	case frac != 0:
		return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, h, m, s, frac)
	case s != 0:
		return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
	default:
		return fmt.Sprintf("%s%02d:%02d", sign, h, m)
	}
}

// durationObject is the object form accepted in YAML and JSON.
type durationObject struct {
	Years        int   `yaml:"years" json:"years"`
	Months       int   `yaml:"months" json:"months"`
	Weeks        int   `yaml:"weeks" json:"weeks"`
	Days         int   `yaml:"days" json:"days"`
	Hours        int64 `yaml:"hours" json:"hours"`
	Minutes      int64 `yaml:"minutes" json:"minutes"`
	Seconds      int64 `yaml:"seconds" json:"seconds"`
	Milliseconds int64 `yaml:"milliseconds" json:"milliseconds"`
}

func (o durationObject) duration() Duration {
	return Duration{
		Years:  o.Years,
		Months: o.Months,
		Days:   o.Weeks*7 + o.Days,
		Milliseconds: o.Hours*msPerHour + o.Minutes*msPerMinute +
			o.Seconds*msPerSecond + o.Milliseconds,
		SpecifiedWeeks: o.Weeks != 0 && o.Days == 0,
	}
}

// UnmarshalYAML accepts either a string (see ParseDuration) or an object
// such as {weeks: 1} or {hours: 12}.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseDuration(node.Value)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var o durationObject
	if err := node.Decode(&o); err != nil {
		return fmt.Errorf("datemath: duration: %w", err)
	}
	*d = o.duration()
	return nil
}

// MarshalYAML writes the string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.String(), nil
}

// UnmarshalJSON accepts a string or an object, like UnmarshalYAML.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseDuration(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var o durationObject
	if err := json.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("datemath: duration: %w", err)
	}
	*d = o.duration()
	return nil
}

// MarshalJSON writes the string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
