// Package profile resolves which dates a timeline view displays.
package profile

import (
	"time"

	"timelinecal/internal/apperr"
	"timelinecal/internal/datemath"
)

// Policy is the configured visible-range policy of a view.
type Policy struct {
	// VisibleRange, when set, is used verbatim.
	VisibleRange *datemath.Range
	// Duration overrides the view type's default span.
	Duration datemath.Duration
	// ValidRange clips whatever was resolved.
	ValidRange *datemath.Range
	// ExpandToDays widens a partial-day range to whole days for rendering.
	ExpandToDays bool
}

// DateProfile is the resolved range of one view render. It is immutable and
// replaced wholesale when the range or the view type changes.
type DateProfile struct {
	ViewType         string            `json:"view_type"`
	CurrentDate      time.Time         `json:"current_date"`
	CurrentRange     datemath.Range    `json:"current_range"`
	CurrentRangeUnit datemath.Unit     `json:"current_range_unit"`
	ActiveRange      datemath.Range    `json:"active_range"`
	IsRangeAllDay    bool              `json:"is_range_all_day"`
	DateIncrement    datemath.Duration `json:"date_increment"`
}

// Equal reports whether two profiles describe the same render.
func (dp DateProfile) Equal(o DateProfile) bool {
	return dp.ViewType == o.ViewType &&
		dp.CurrentRange.Equal(o.CurrentRange) &&
		dp.ActiveRange.Equal(o.ActiveRange) &&
		dp.CurrentRangeUnit == o.CurrentRangeUnit
}

// Resolve computes the displayed range for viewType anchored at current.
// An explicit visible range wins; otherwise the view (or policy) duration is
// laid out from the start of its largest unit containing current.
func Resolve(env datemath.Env, policy Policy, current time.Time, viewType string) (DateProfile, error) {
	spec, ok := LookupView(viewType)
	if !ok {
		return DateProfile{}, apperr.Config("initial_view", "unknown view type %q", viewType)
	}

	dp := DateProfile{ViewType: spec.Name, CurrentDate: current}

	if policy.VisibleRange != nil {
		dp.CurrentRange = *policy.VisibleRange
		dp.CurrentRangeUnit = spanUnit(env, dp.CurrentRange)
		dp.DateIncrement = spanDuration(dp.CurrentRange, dp.CurrentRangeUnit)
	} else {
		dur := spec.Duration
		if !policy.Duration.IsZero() {
			dur = policy.Duration
		}
		if dur.AsRoughMs() <= 0 {
			return DateProfile{}, apperr.Config("duration", "must be positive, got %s", dur)
		}
		unit, _ := dur.Denominator()
		start := env.StartOf(current, unit)
		dp.CurrentRange = datemath.Range{Start: start, End: env.Add(start, dur)}
		dp.CurrentRangeUnit = unit
		dp.DateIncrement = dur
	}

	if !dp.CurrentRange.Start.Before(dp.CurrentRange.End) {
		return DateProfile{}, apperr.Config("visible_range", "end %s must be after start %s",
			datemath.FormatMarker(dp.CurrentRange.End), datemath.FormatMarker(dp.CurrentRange.Start))
	}

	if policy.ValidRange != nil {
		clipped, ok := dp.CurrentRange.Intersect(*policy.ValidRange)
		if !ok {
			return DateProfile{}, apperr.Config("valid_range", "range %s lies outside %s", dp.CurrentRange, *policy.ValidRange)
		}
		dp.CurrentRange = clipped
	}

	dp.ActiveRange = dp.CurrentRange
	if policy.ExpandToDays {
		dp.ActiveRange = expandToDays(dp.ActiveRange)
	}
	dp.IsRangeAllDay = isDayOrCoarser(dp.CurrentRangeUnit)
	return dp, nil
}

// Shift moves the view n increments forward (negative n goes back) and
// returns the policy and anchor date to resolve next. The anchor steps from
// the unit-aligned start of the current range.
func Shift(policy Policy, dp DateProfile, n int) (Policy, time.Time) {
	step := dp.DateIncrement.Multiply(n)
	if policy.VisibleRange != nil {
		r := datemath.Range{
			Start: step.AddTo(policy.VisibleRange.Start),
			End:   step.AddTo(policy.VisibleRange.End),
		}
		policy.VisibleRange = &r
	}
	return policy, step.AddTo(dp.CurrentRange.Start)
}

// spanUnit classifies an explicit range by the largest calendar unit both
// of its bounds align to.
func spanUnit(env datemath.Env, r datemath.Range) datemath.Unit {
	s, e := r.Start, r.End
	switch {
	case env.StartOf(s, datemath.UnitYear).Equal(s) && env.StartOf(e, datemath.UnitYear).Equal(e):
		return datemath.UnitYear
	case env.StartOf(s, datemath.UnitMonth).Equal(s) && env.StartOf(e, datemath.UnitMonth).Equal(e):
		return datemath.UnitMonth
	case datemath.IsMidnight(s) && datemath.IsMidnight(e):
		if days := int(e.Sub(s).Hours() / 24); days%7 == 0 && env.IsWeekStart(s) {
			return datemath.UnitWeek
		}
		return datemath.UnitDay
	}
	unit, _ := datemath.FromStd(e.Sub(s)).Denominator()
	return unit
}

func spanDuration(r datemath.Range, unit datemath.Unit) datemath.Duration {
	s, e := r.Start, r.End
	switch unit {
	case datemath.UnitYear:
		return datemath.Years(e.Year() - s.Year())
	case datemath.UnitMonth:
		return datemath.Months((e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month()))
	case datemath.UnitWeek:
		return datemath.Weeks(int(e.Sub(s).Hours() / (24 * 7)))
	case datemath.UnitDay:
		return datemath.Days(int(e.Sub(s).Hours() / 24))
	}
	return datemath.FromStd(e.Sub(s))
}

func expandToDays(r datemath.Range) datemath.Range {
	start := datemath.StartOfDay(r.Start)
	end := datemath.StartOfDay(r.End)
	if end.Before(r.End) {
		end = end.AddDate(0, 0, 1)
	}
	return datemath.Range{Start: start, End: end}
}

func isDayOrCoarser(u datemath.Unit) bool {
	switch u {
	case datemath.UnitYear, datemath.UnitMonth, datemath.UnitWeek, datemath.UnitDay:
		return true
	}
	return false
}

// ParseVisibleRange builds an explicit range from configuration strings.
// Both empty means no explicit range.
func ParseVisibleRange(env datemath.Env, start, end string) (*datemath.Range, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, apperr.Config("visible_range", "both start and end are required")
	}
	s, _, err := env.ParseMarker(start)
	if err != nil {
		return nil, apperr.Config("visible_range.start", "%v", err)
	}
	e, _, err := env.ParseMarker(end)
	if err != nil {
		return nil, apperr.Config("visible_range.end", "%v", err)
	}
	if !s.Before(e) {
		return nil, apperr.Config("visible_range", "end %s must be after start %s", end, start)
	}
	return &datemath.Range{Start: s, End: e}, nil
}
