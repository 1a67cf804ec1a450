package datemath

import "time"

// Range is a half-open interval [Start, End) of markers. Zero-length ranges
// are allowed while computing but are never rendered.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsEmpty reports whether the range covers no time.
func (r Range) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// Contains reports whether t lies in [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether both ranges share at least one instant.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Intersect clips r to o. ok is false when nothing remains.
func (r Range) Intersect(o Range) (Range, bool) {
	start := r.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := r.End
	if o.End.Before(end) {
		end = o.End
	}
	if !start.Before(end) {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// Equal compares both bounds.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r Range) String() string {
	return FormatMarker(r.Start) + " .. " + FormatMarker(r.End)
}
