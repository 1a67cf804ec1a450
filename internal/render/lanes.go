package render

import (
	"time"

	"timelinecal/internal/datemath"
	"timelinecal/internal/model"
	"timelinecal/internal/timeline"
)

// Bar is one occurrence placed on a lane of a resource row.
type Bar struct {
	Span timeline.Span
	Lane int
	Occ  model.Occurrence
}

// Row is a resource with its occurrences stacked into lanes. A row always
// has at least one lane.
type Row struct {
	Resource model.Resource
	Bars     []Bar
	Lanes    int
}

// BuildRow stacks overlapping occurrences into lanes, first fit. occs must
// be sorted by start; occurrences outside the coords are dropped.
func BuildRow(res model.Resource, occs []model.Occurrence, coords *timeline.Coords) Row {
	r := Row{Resource: res, Lanes: 1}
	var laneEnds []time.Time
	for _, occ := range occs {
		span, ok := coords.RangeToSpan(datemath.Range{Start: occ.Start, End: occ.DefaultEnd()})
		if !ok {
			continue
		}
		lane := -1
		for i, end := range laneEnds {
			if !end.After(occ.Start) {
				lane = i
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, time.Time{})
		}
		laneEnds[lane] = occ.DefaultEnd()
		r.Bars = append(r.Bars, Bar{Span: span, Lane: lane, Occ: occ})
	}
	if len(laneEnds) > r.Lanes {
		r.Lanes = len(laneEnds)
	}
	return r
}
