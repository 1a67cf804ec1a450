// Package render draws a resolved timeline as a standalone SVG document.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"timelinecal/internal/config"
	"timelinecal/internal/datemath"
	"timelinecal/internal/layout"
	"timelinecal/internal/timeline"
	"timelinecal/internal/view"
)

// pxPerColumn converts the configured column widths into pixels.
const pxPerColumn = 8

// Options controls the drawn geometry. All sizes are pixels.
type Options struct {
	SlotWidth           int
	ResourceAreaWidth   int
	HeaderRowHeight     int
	LaneHeight          int
	DatesAboveResources bool
	// Now draws the current-time line when it is inside the range. It is a
	// marker; zero disables the line.
	Now time.Time
}

// OptionsFromConfig scales the terminal-oriented widths of cfg to pixels.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SlotWidth:           cfg.SlotWidth * pxPerColumn,
		ResourceAreaWidth:   cfg.ResourceAreaWidth * pxPerColumn,
		DatesAboveResources: cfg.DatesAboveResources,
	}
}

func (o Options) withDefaults() Options {
	if o.SlotWidth <= 0 {
		o.SlotWidth = 48
	}
	if o.ResourceAreaWidth < 0 {
		o.ResourceAreaWidth = 0
	}
	if o.HeaderRowHeight <= 0 {
		o.HeaderRowHeight = 20
	}
	if o.LaneHeight <= 0 {
		o.LaneHeight = 22
	}
	return o
}

// SVG renders snap. The document carries the view name and active range as
// data attributes so captures and tests can identify it.
func SVG(snap view.Snapshot, opt Options) (string, error) {
	tp := snap.Profile
	if tp == nil {
		return "", errors.New("render: snapshot has no slot profile")
	}
	opt = opt.withDefaults()

	n := tp.SlotCount()
	grid := layout.Grid{ClientWidth: n * opt.SlotWidth, MinSlotWidth: opt.SlotWidth, Origin: opt.ResourceAreaWidth}
	resX := 0
	if snap.IsRtl {
		grid.Origin = 0
		resX = grid.TotalWidth(n)
	}
	coords, err := timeline.NewCoords(grid.Measure(n, snap.IsRtl), tp, snap.IsRtl)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	bodyWidth := grid.TotalWidth(n)

	rows := make([]Row, 0, len(snap.Resources))
	bodyHeight := 0
	for _, res := range snap.Resources {
		r := BuildRow(res, snap.RowOccurrences(res.ID), coords)
		rows = append(rows, r)
		bodyHeight += r.Lanes * opt.LaneHeight
	}

	groups := MajorGroups(tp)
	headerRows := 1
	if len(groups) > 0 {
		headerRows = 2
	}
	headerHeight := headerRows * opt.HeaderRowHeight
	width := bodyWidth + opt.ResourceAreaWidth
	height := headerHeight + bodyHeight

	headerY, bodyY := 0, headerHeight
	if !opt.DatesAboveResources {
		headerY, bodyY = bodyHeight, 0
	}

	var svg strings.Builder
	fmt.Fprintf(&svg, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg" data-view="%s" data-start="%s" data-end="%s" data-slots="%d">
<rect width="100%%" height="100%%" fill="#ffffff"/>
<defs>
<style>
.label { font-family: sans-serif; font-size: 11px; fill: #222222; }
.major { font-weight: bold; }
.slat { stroke: #dddddd; stroke-width: 1; }
.slat-major { stroke: #888888; stroke-width: 1; }
.event { fill: #3b7dd8; stroke: #2a5ea6; stroke-width: 1; }
.event-allday { fill: #6aa84f; stroke: #4d7a39; }
.event-text { font-family: sans-serif; font-size: 10px; fill: #ffffff; }
.now { stroke: #d93025; stroke-width: 2; }
.day-weekend { fill: #f3f3f3; }
</style>
</defs>
`, width, height, escapeXML(snap.DateProfile.ViewType),
		datemath.FormatMarker(tp.ActiveRange.Start), datemath.FormatMarker(tp.ActiveRange.End), n)

	if tp.IsDay() {
		for i := 0; i < n; i++ {
			if !isWeekend(tp.SlotDates[i]) {
				continue
			}
			cell := coords.Cell(i)
			fmt.Fprintf(&svg, `<rect class="day-weekend" x="%.1f" y="0" width="%.1f" height="%d"/>`+"\n",
				cell.Left, cell.Right-cell.Left, height)
		}
	}

	// Slats run the full height so they also divide the header.
	for i := 0; i < n; i++ {
		cell := coords.Cell(i)
		x := cell.Left
		if snap.IsRtl {
			x = cell.Right
		}
		class := "slat"
		if tp.IsWeekStarts[i] || isGroupStart(groups, i) {
			class = "slat-major"
		}
		fmt.Fprintf(&svg, `<line class="%s" x1="%.1f" y1="0" x2="%.1f" y2="%d"/>`+"\n", class, x, x, height)
	}

	// Header.
	minorY := headerY
	if len(groups) > 0 {
		for _, g := range groups {
			span, ok := coords.RangeToSpan(g.Range)
			if !ok {
				continue
			}
			fmt.Fprintf(&svg, `<text class="label major" x="%.1f" y="%d">%s</text>`+"\n",
				span.Left+3, headerY+opt.HeaderRowHeight-6, escapeXML(g.Label))
		}
		minorY += opt.HeaderRowHeight
	}
	for i := 0; i < n; i++ {
		cell := coords.Cell(i)
		fmt.Fprintf(&svg, `<text class="label" x="%.1f" y="%d">%s</text>`+"\n",
			cell.Left+3, minorY+opt.HeaderRowHeight-6, escapeXML(SlotLabel(tp, i)))
	}

	// Rows.
	y := bodyY
	for _, r := range rows {
		rowHeight := r.Lanes * opt.LaneHeight
		fmt.Fprintf(&svg, `<line class="slat-major" x1="0" y1="%d" x2="%d" y2="%d"/>`+"\n", y, width, y)
		title := r.Resource.Title
		if title == "" {
			title = r.Resource.ID
		}
		fmt.Fprintf(&svg, `<text class="label" x="%d" y="%d">%s</text>`+"\n", resX+4, y+opt.LaneHeight-7, escapeXML(title))
		for _, b := range r.Bars {
			class := "event"
			if b.Occ.AllDay {
				class = "event event-allday"
			}
			w := b.Span.Right - b.Span.Left
			if w < 2 {
				w = 2
			}
			by := y + b.Lane*opt.LaneHeight + 2
			fmt.Fprintf(&svg, `<g data-instance="%s"><rect class="%s" x="%.1f" y="%d" width="%.1f" height="%d" rx="3"/>`,
				escapeXML(b.Occ.InstanceKey), class, b.Span.Left, by, w, opt.LaneHeight-4)
			fmt.Fprintf(&svg, `<text class="event-text" x="%.1f" y="%d">%s</text></g>`+"\n",
				b.Span.Left+3, by+opt.LaneHeight-10, escapeXML(b.Occ.Summary))
		}
		y += rowHeight
	}

	if !opt.Now.IsZero() && tp.ActiveRange.Contains(opt.Now) {
		x := coords.DateToCoord(opt.Now)
		fmt.Fprintf(&svg, `<line class="now" x1="%.1f" y1="%d" x2="%.1f" y2="%d"/>`+"\n", x, bodyY, x, bodyY+bodyHeight)
	}

	svg.WriteString("</svg>")
	return svg.String(), nil
}

func isGroupStart(groups []Group, i int) bool {
	for _, g := range groups {
		if g.First == i {
			return i > 0
		}
	}
	return false
}

func isWeekend(m time.Time) bool {
	wd := m.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// escapeXML escapes special XML characters in a string to ensure valid SVG output.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
