// Package layout places slot cells on an integer pixel (or terminal column)
// grid and measures them the way a renderer would.
package layout

import (
	"github.com/mattn/go-runewidth"

	"timelinecal/internal/timeline"
)

// Grid is a horizontal strip of slot cells.
type Grid struct {
	// ClientWidth is the visible width. Zero means not measured yet.
	ClientWidth int
	// MinSlotWidth is the narrowest a slot may be. Slots are stretched to
	// fill ClientWidth when they fit, and overflow (scroll) otherwise.
	MinSlotWidth int
	// Origin offsets every cell, e.g. by the width of a resource column.
	Origin int
	Hidden bool
}

// Width reports the client width.
func (g Grid) Width() int { return g.ClientWidth }

// Visible reports whether the grid has a size worth measuring.
func (g Grid) Visible() bool {
	return !g.Hidden && g.ClientWidth > 0
}

func (g Grid) minSlot() int {
	if g.MinSlotWidth < 1 {
		return 1
	}
	return g.MinSlotWidth
}

// SlotWidths distributes the width over n slots. Leftover columns go to the
// leading slots one each, so widths differ by at most one.
func (g Grid) SlotWidths(n int) []int {
	if n <= 0 {
		return nil
	}
	widths := make([]int, n)
	total := g.ClientWidth
	if floor := g.minSlot() * n; total < floor {
		total = floor
	}
	base, extra := total/n, total%n
	for i := range widths {
		widths[i] = base
		if i < extra {
			widths[i]++
		}
	}
	return widths
}

// TotalWidth is the width of the whole strip, which exceeds ClientWidth when
// the slots overflow.
func (g Grid) TotalWidth(n int) int {
	sum := 0
	for _, w := range g.SlotWidths(n) {
		sum += w
	}
	return sum
}

// Measure returns one cell per slot in slot order. In RTL slot 0 is the
// rightmost cell.
func (g Grid) Measure(n int, rtl bool) []timeline.Cell {
	widths := g.SlotWidths(n)
	cells := make([]timeline.Cell, n)
	total := 0
	for _, w := range widths {
		total += w
	}
	x := 0
	for i, w := range widths {
		if rtl {
			right := g.Origin + total - x
			cells[i] = timeline.Cell{Left: float64(right - w), Right: float64(right)}
		} else {
			cells[i] = timeline.Cell{Left: float64(g.Origin + x), Right: float64(g.Origin + x + w)}
		}
		x += w
	}
	return cells
}

// ClampScroll keeps a scroll offset inside [0, total-client].
func ClampScroll(offset, total, client int) int {
	if limit := total - client; offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

// Fit pads or truncates s to exactly width display columns.
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// TextWidth is the number of display columns s occupies.
func TextWidth(s string) int {
	return runewidth.StringWidth(s)
}
