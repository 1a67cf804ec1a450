package timeline

import (
	"timelinecal/internal/datemath"
	"timelinecal/internal/profile"
)

const (
	minAutoSlots = 30
	maxAutoSlots = 200
)

// stockSlotDurations lists the candidate automatic slot sizes, coarsest first.
var stockSlotDurations = []datemath.Duration{
	datemath.Years(1),
	datemath.Months(1),
	datemath.Weeks(1),
	datemath.Days(1),
	datemath.Hours(1),
	datemath.Minutes(30),
	datemath.Minutes(15),
	datemath.Minutes(10),
	datemath.Minutes(5),
	datemath.Minutes(1),
	datemath.Seconds(30),
	datemath.Seconds(15),
	datemath.Seconds(10),
	datemath.Seconds(5),
	datemath.Seconds(1),
}

var unitSlotDurations = map[datemath.Unit]datemath.Duration{
	datemath.UnitYear:  datemath.Years(1),
	datemath.UnitMonth: datemath.Months(1),
	datemath.UnitWeek:  datemath.Weeks(1),
	datemath.UnitDay:   datemath.Days(1),
}

// AutoSlotDuration picks the slot duration for a view that configured none.
// A current range made of at least two whole days, weeks, months or years
// gets one slot per unit; anything else goes through FallbackSlotDuration.
func AutoSlotDuration(dp profile.DateProfile) datemath.Duration {
	if d, ok := unitSlotDurations[dp.CurrentRangeUnit]; ok {
		if n := wholeUnits(dp.CurrentRange, d); n >= 2 && n <= maxAutoSlots {
			return d
		}
	}
	return FallbackSlotDuration(dp.ActiveRange)
}

// wholeUnits counts how many steps of d tile r exactly, or 0 when they
// don't (or there would be more than maxAutoSlots).
func wholeUnits(r datemath.Range, d datemath.Duration) int {
	for n := 1; n <= maxAutoSlots; n++ {
		end := d.Multiply(n).AddTo(r.Start)
		if !end.Before(r.End) {
			if end.Equal(r.End) {
				return n
			}
			return 0
		}
	}
	return 0
}

// FallbackSlotDuration picks a slot duration for a view that configured
// none: the coarsest stock duration giving a readable slot count over r.
func FallbackSlotDuration(r datemath.Range) datemath.Duration {
	span := r.End.Sub(r.Start).Milliseconds()
	if span <= 0 {
		return datemath.Days(1)
	}
	for _, d := range stockSlotDurations {
		n := span / d.AsRoughMs()
		if n >= minAutoSlots && n <= maxAutoSlots {
			return d
		}
	}
	// Nothing lands in the window: prefer too many slots over too few.
	for _, d := range stockSlotDurations {
		if span/d.AsRoughMs() >= minAutoSlots {
			return d
		}
	}
	return stockSlotDurations[len(stockSlotDurations)-1]
}
