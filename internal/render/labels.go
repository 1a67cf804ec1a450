package render

import (
	"time"

	"timelinecal/internal/datemath"
	"timelinecal/internal/timeline"
)

// Group is a run of consecutive slots sharing a coarser date, drawn as the
// upper header row.
type Group struct {
	Label string
	Range datemath.Range
	// First and Last are slot indexes, Last exclusive.
	First, Last int
}

// SlotLabel is the header text of slot i.
func SlotLabel(tp *timeline.Profile, i int) string {
	d := tp.SlotDates[i]
	if tp.IsTimeScale {
		if d.Second() != 0 || tp.SlotDuration.Milliseconds%60000 != 0 {
			return d.Format("15:04:05")
		}
		return d.Format("15:04")
	}
	switch tp.LargeUnit {
	case datemath.UnitYear:
		return d.Format("2006")
	case datemath.UnitMonth:
		return d.Format("Jan")
	case datemath.UnitWeek:
		return d.Format("Jan 2")
	}
	return d.Format("Mon 2")
}

// MajorGroups groups slots by day for time scales, by month for day and
// week slots and by year for month slots. Year slots have no upper row.
func MajorGroups(tp *timeline.Profile) []Group {
	var key func(time.Time) time.Time
	var layout string
	switch {
	case tp.IsTimeScale:
		key, layout = datemath.StartOfDay, "Mon Jan 2"
	case tp.LargeUnit == datemath.UnitYear:
		return nil
	case tp.LargeUnit == datemath.UnitMonth:
		key = func(t time.Time) time.Time { return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC) }
		layout = "2006"
	default:
		key = func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC) }
		layout = "January 2006"
	}

	var groups []Group
	n := tp.SlotCount()
	for i := 0; i < n; i++ {
		k := key(tp.SlotDates[i])
		if len(groups) > 0 && key(groups[len(groups)-1].Range.Start).Equal(k) {
			g := &groups[len(groups)-1]
			g.Last = i + 1
			g.Range.End = tp.SlotDates[i+1]
			continue
		}
		groups = append(groups, Group{
			Label: k.Format(layout),
			Range: datemath.Range{Start: tp.SlotDates[i], End: tp.SlotDates[i+1]},
			First: i,
			Last:  i + 1,
		})
	}
	return groups
}
