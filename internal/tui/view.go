package tui

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"timelinecal/internal/datemath"
	"timelinecal/internal/layout"
	"timelinecal/internal/render"
	"timelinecal/internal/timeline"
)

var (
	majorStyle     = lipgloss.NewStyle().Bold(true)
	slotStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	weekStartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	resourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	eventStyle     = lipgloss.NewStyle().Background(lipgloss.Color("25")).Foreground(lipgloss.Color("255"))
	allDayStyle    = lipgloss.NewStyle().Background(lipgloss.Color("64")).Foreground(lipgloss.Color("255"))
	draggingStyle  = lipgloss.NewStyle().Background(lipgloss.Color("172")).Foreground(lipgloss.Color("0"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

const helpText = "[ ] prev/next  t today  d/w/m view  h/l scroll  r refresh  q quit"

// segment is a run of text starting at a content column.
type segment struct {
	start int
	width int
	text  string
	style lipgloss.Style
}

func spanSegment(s timeline.Span, text string, style lipgloss.Style) segment {
	left, right := int(math.Round(s.Left)), int(math.Round(s.Right))
	if right <= left {
		right = left + 1
	}
	return segment{start: left, width: right - left, text: text, style: style}
}

// renderLine draws the columns [from, from+width) of a line made of segs.
// Gaps are blank; a later segment overlapping an earlier one is clipped.
func renderLine(segs []segment, from, width int) string {
	segs = slices.Clone(segs)
	slices.SortStableFunc(segs, func(a, b segment) int { return a.start - b.start })

	var b strings.Builder
	col, end := from, from+width
	for _, s := range segs {
		start, stop := s.start, s.start+s.width
		if stop <= col || start >= end {
			continue
		}
		if start > col {
			b.WriteString(strings.Repeat(" ", start-col))
			col = start
		}
		if stop > end {
			stop = end
		}
		text := s.text
		if cut := col - start; cut > 0 {
			text = runewidth.TruncateLeft(text, cut, "")
		}
		want := stop - col
		b.WriteString(s.style.Render(runewidth.FillRight(runewidth.Truncate(text, want, ""), want)))
		col = stop
	}
	if col < end {
		b.WriteString(strings.Repeat(" ", end-col))
	}
	return b.String()
}

func (m *Model) View() string {
	if m.width == 0 {
		return "starting…"
	}
	if !m.loaded {
		if m.err != nil {
			return errorStyle.Render(m.err.Error())
		}
		return "loading…"
	}
	coords, ok := m.slats.Coords()
	if !ok {
		return "sizing… " + m.slats.State().String()
	}

	tp := m.snap.Profile
	rw, cw := m.resourceWidth(), m.clientWidth()
	blank := strings.Repeat(" ", rw)
	line := func(title string, segs []segment) string {
		body := renderLine(segs, m.scroll, cw)
		if m.snap.IsRtl {
			return body + title
		}
		return title + body
	}

	var header []string
	if groups := render.MajorGroups(tp); len(groups) > 0 {
		segs := make([]segment, 0, len(groups))
		for _, g := range groups {
			span, ok := coords.RangeToSpan(g.Range)
			if !ok {
				continue
			}
			segs = append(segs, spanSegment(span, " "+g.Label, majorStyle))
		}
		header = append(header, line(blank, segs))
	}
	minor := make([]segment, 0, tp.SlotCount())
	for i := 0; i < tp.SlotCount(); i++ {
		style := slotStyle
		if tp.IsWeekStarts[i] {
			style = weekStartStyle
		}
		minor = append(minor, spanSegment(timeline.Span{Left: coords.Cell(i).Left, Right: coords.Cell(i).Right}, render.SlotLabel(tp, i), style))
	}
	header = append(header, line(blank, minor))

	var body []string
	for _, r := range m.rows(coords) {
		title := r.Resource.Title
		if title == "" {
			title = r.Resource.ID
		}
		for lane := 0; lane < r.Lanes; lane++ {
			var segs []segment
			for _, b := range r.Bars {
				if b.Lane != lane {
					continue
				}
				style := eventStyle
				switch {
				case m.drag != nil && m.drag.preview.InstanceKey == b.Occ.InstanceKey:
					style = draggingStyle
				case b.Occ.AllDay:
					style = allDayStyle
				}
				segs = append(segs, spanSegment(b.Span, b.Occ.Summary, style))
			}
			label := blank
			if lane == 0 {
				label = resourceStyle.Render(layout.Fit(title, rw))
			}
			body = append(body, line(label, segs))
		}
	}

	var lines []string
	if m.ctrl.Config().DatesAboveResources {
		lines = append(append(lines, header...), body...)
	} else {
		lines = append(append(lines, body...), header...)
	}
	lines = append(lines, m.footer())
	return strings.Join(lines, "\n")
}

func (m *Model) footer() string {
	dp := m.snap.DateProfile
	info := fmt.Sprintf("%s  %s .. %s  %s", dp.ViewType,
		datemath.FormatMarker(dp.CurrentRange.Start), datemath.FormatMarker(dp.CurrentRange.End), helpText)
	if m.status != "" {
		info += "  | " + m.status
	}
	if m.err != nil {
		return errorStyle.Render(layout.Fit(info, m.width))
	}
	return footerStyle.Render(layout.Fit(info, m.width))
}
