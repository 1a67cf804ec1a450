package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"timelinecal/internal/datemath"
)

// ErrGeometry is returned when measured cells cannot back a coordinate cache.
var ErrGeometry = errors.New("timeline: invalid slot geometry")

// Cell is the measured horizontal extent of one rendered slot, in pixels
// from the left edge of the slot area.
type Cell struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

func (c Cell) Width() float64 { return c.Right - c.Left }

// Span is a horizontal pixel interval with Left <= Right.
type Span struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Coords maps pixels to slots and dates to pixels for one measured layout.
// It is rebuilt whenever the geometry changes and never mutated.
type Coords struct {
	prof  *Profile
	cells []Cell
	rtl   bool
}

// NewCoords validates cells against p. Cell i belongs to slot i; in RTL the
// cells run right to left, so their boundaries decrease.
func NewCoords(cells []Cell, p *Profile, isRtl bool) (*Coords, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrGeometry)
	}
	if len(cells) == 0 || len(cells) != p.SlotCount() {
		return nil, fmt.Errorf("%w: %d cells for %d slots", ErrGeometry, len(cells), p.SlotCount())
	}
	for i, c := range cells {
		if !(c.Width() > 0) {
			return nil, fmt.Errorf("%w: cell %d has width %v", ErrGeometry, i, c.Width())
		}
		if i == 0 {
			continue
		}
		prev := cells[i-1]
		if !isRtl && c.Left < prev.Right {
			return nil, fmt.Errorf("%w: cell %d starts at %v before cell %d ends at %v", ErrGeometry, i, c.Left, i-1, prev.Right)
		}
		if isRtl && c.Right > prev.Left {
			return nil, fmt.Errorf("%w: cell %d ends at %v after cell %d starts at %v", ErrGeometry, i, c.Right, i-1, prev.Left)
		}
	}
	return &Coords{prof: p, cells: append([]Cell(nil), cells...), rtl: isRtl}, nil
}

func (c *Coords) Profile() *Profile { return c.prof }
func (c *Coords) IsRtl() bool { return c.rtl }
func (c *Coords) Len() int { return len(c.cells) }

func (c *Coords) Cell(i int) Cell { return c.cells[i] }
func (c *Coords) Width(i int) float64 { return c.cells[i].Width() }

// Lefts returns a copy of the left boundaries.
func (c *Coords) Lefts() []float64 {
	out := make([]float64, len(c.cells))
	for i, cell := range c.cells {
		out[i] = cell.Left
	}
	return out
}

// Rights returns a copy of the right boundaries.
func (c *Coords) Rights() []float64 {
	out := make([]float64, len(c.cells))
	for i, cell := range c.cells {
		out[i] = cell.Right
	}
	return out
}

// Bounds is the pixel extent covered by all cells.
func (c *Coords) Bounds() Span {
	first, last := c.cells[0], c.cells[len(c.cells)-1]
	if c.rtl {
		return Span{Left: last.Left, Right: first.Right}
	}
	return Span{Left: first.Left, Right: last.Right}
}

// LeftToIndex returns the slot under pixel x. A cell covers [left, right) in
// LTR and (left, right] in RTL, so a shared boundary belongs to the slot it
// is the leading edge of.
func (c *Coords) LeftToIndex(x float64) (int, bool) {
	n := len(c.cells)
	if c.rtl {
		i := sort.Search(n, func(i int) bool { return c.cells[i].Left < x })
		if i < n && x <= c.cells[i].Right {
			return i, true
		}
		return 0, false
	}
	i := sort.Search(n, func(i int) bool { return c.cells[i].Right > x })
	if i < n && x >= c.cells[i].Left {
		return i, true
	}
	return 0, false
}

// DateToCoord interpolates the pixel of date inside its slot. Dates outside
// the active range clamp to the nearest edge.
func (c *Coords) DateToCoord(date time.Time) float64 {
	p := c.prof
	n := p.SlotCount()
	var (
		i       int
		partial float64
	)
	switch {
	case !date.After(p.SlotDates[0]):
		i, partial = 0, 0
	case !date.Before(p.SlotDates[n]):
		i, partial = n-1, 1
	default:
		i, _ = p.SlotIndex(date)
		start, end := p.SlotDates[i], p.SlotDates[i+1]
		partial = float64(date.Sub(start)) / float64(end.Sub(start))
	}
	cell := c.cells[i]
	if c.rtl {
		return cell.Right - cell.Width()*partial
	}
	return cell.Left + cell.Width()*partial
}

// ComputeDurationLeft is the pixel of the active range start plus d. Coarse
// timelines snap the date to its day first.
func (c *Coords) ComputeDurationLeft(d datemath.Duration) float64 {
	date := d.AddTo(c.prof.ActiveRange.Start)
	if !c.prof.IsTimeScale {
		date = datemath.StartOfDay(date)
	}
	return c.DateToCoord(date)
}

// RangeToSpan returns the pixel span of r clipped to the active range. It
// reports false when r does not overlap the active range.
func (c *Coords) RangeToSpan(r datemath.Range) (Span, bool) {
	clipped, ok := r.Intersect(c.prof.ActiveRange)
	if !ok || clipped.IsEmpty() {
		return Span{}, false
	}
	a, b := c.DateToCoord(clipped.Start), c.DateToCoord(clipped.End)
	if a > b {
		a, b = b, a
	}
	return Span{Left: a, Right: b}, true
}
