package timeline

import (
	"math"

	"timelinecal/internal/datemath"
)

// DateSpan is a date range plus whether it denotes whole days.
type DateSpan struct {
	Range  datemath.Range `json:"range"`
	AllDay bool           `json:"all_day"`
}

// Hit is the snapped date span under a pixel together with the slot cell
// that contains it.
type Hit struct {
	DateSpan  DateSpan `json:"date_span"`
	SlotIndex int      `json:"slot_index"`
	Left      float64  `json:"left"`
	Right     float64  `json:"right"`
}

// PositionToHit resolves pixel x to the snap interval under it. It reports
// false when x lies outside every slot.
func (c *Coords) PositionToHit(x float64) (Hit, bool) {
	i, ok := c.LeftToIndex(x)
	if !ok {
		return Hit{}, false
	}
	p := c.prof
	cell := c.cells[i]

	var partial float64
	if c.rtl {
		partial = (cell.Right - x) / cell.Width()
	} else {
		partial = (x - cell.Left) / cell.Width()
	}

	j := int(math.Floor(partial * float64(p.SnapsPerSlot)))
	if j < 0 {
		j = 0
	} else if j >= p.SnapsPerSlot {
		j = p.SnapsPerSlot - 1
	}

	start := p.SnapDuration.Multiply(j).AddTo(p.SlotDates[i])
	end := p.SnapDuration.AddTo(start)

	return Hit{
		DateSpan: DateSpan{
			Range:  datemath.Range{Start: start, End: end},
			AllDay: !p.IsTimeScale,
		},
		SlotIndex: i,
		Left:      cell.Left,
		Right:     cell.Right,
	}, true
}
