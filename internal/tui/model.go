// Package tui draws the resource timeline in a terminal, one slot per few
// columns, and lets the mouse move or resize occurrences.
package tui

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"timelinecal/internal/datemath"
	"timelinecal/internal/interact"
	"timelinecal/internal/layout"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/model"
	"timelinecal/internal/render"
	"timelinecal/internal/slats"
	"timelinecal/internal/timeline"
	"timelinecal/internal/view"
)

// Views reachable with the d, w and m keys.
var viewKeys = map[string]string{
	"d": "resourceTimelineDay",
	"w": "resourceTimelineWeek",
	"m": "resourceTimelineMonth",
}

type snapshotMsg struct {
	snap view.Snapshot
	err  error
}

type dragState struct {
	drag     *interact.Drag
	resource string
	preview  model.Occurrence
	valid    bool
}

// Model is the bubbletea model of the terminal timeline.
type Model struct {
	ctx  context.Context
	ctrl *view.Controller
	now  func() time.Time

	overrides view.Overrides
	snap      view.Snapshot
	loaded    bool
	err       error

	slats  *slats.Slats
	width  int
	height int
	// scroll is the first visible column of the slot area.
	scroll int

	// Edits made with the mouse, keyed by instance key. They live as long
	// as the program.
	edits  map[string]model.Occurrence
	drag   *dragState
	status string
}

type Option func(*Model)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithOverrides sets the initial view parameters.
func WithOverrides(o view.Overrides) Option {
	return func(m *Model) { m.overrides = o }
}

func New(ctx context.Context, ctrl *view.Controller, opts ...Option) *Model {
	m := &Model{
		ctx:   ctx,
		ctrl:  ctrl,
		now:   time.Now,
		slats: slats.New(),
		edits: make(map[string]model.Occurrence),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.slats.OnScroll(m.scrollTo)
	return m
}

// Run starts the program on the terminal and blocks until it quits.
func Run(ctx context.Context, ctrl *view.Controller, opts ...Option) error {
	m := New(ctx, ctrl, opts...)
	_, err := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	appLog.Info("tui started", "view", m.overrides.View)
	return m.load()
}

// load fetches a snapshot for the current overrides off the UI loop.
func (m *Model) load() tea.Cmd {
	ctx, ctrl, now, o := m.ctx, m.ctrl, m.now, m.overrides
	return func() tea.Msg {
		snap, err := ctrl.Snapshot(ctx, now(), o)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	load := m.load()
	return func() tea.Msg {
		if err := ctrl.Refresh(ctx); err != nil {
			return snapshotMsg{err: err}
		}
		return load()
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sync()
		return m, nil
	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = msg.err.Error()
			appLog.Error("tui snapshot failed", msg.err)
			return m, nil
		}
		m.snap, m.loaded, m.err = msg.snap, true, nil
		m.sync()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.drag != nil {
			m.drag = nil
			m.status = "drag cancelled"
		}
	case "h", "left":
		m.scrollBy(-m.step())
	case "l", "right":
		m.scrollBy(m.step())
	case "[":
		m.overrides.Shift--
		return m, m.load()
	case "]":
		m.overrides.Shift++
		return m, m.load()
	case "t":
		m.overrides.Shift = 0
		m.overrides.Date = ""
		return m, m.load()
	case "r":
		m.status = "refreshing"
		return m, m.refresh()
	case "d", "w", "m":
		// Keep the date the user navigated to.
		if m.loaded {
			m.overrides.Date = datemath.FormatMarker(m.snap.DateProfile.CurrentDate)
		}
		m.overrides.Shift = 0
		m.overrides.View = viewKeys[key]
		return m, m.load()
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp, tea.MouseButtonWheelLeft:
			m.scrollBy(-m.step())
		case tea.MouseButtonWheelDown, tea.MouseButtonWheelRight:
			m.scrollBy(m.step())
		case tea.MouseButtonLeft:
			m.beginDrag(msg.X, msg.Y)
		}
	case tea.MouseActionMotion:
		if m.drag != nil {
			m.moveDrag(msg.X, msg.Y)
		}
	case tea.MouseActionRelease:
		if m.drag != nil {
			m.moveDrag(msg.X, msg.Y)
			m.endDrag()
		}
	}
	return m, nil
}

// sync pushes the snapshot and terminal size into the slats.
func (m *Model) sync() {
	if !m.loaded || m.width == 0 {
		return
	}
	p := slats.Props{
		DateProfile: m.snap.DateProfile,
		Profile:     m.snap.Profile,
		IsRtl:       m.snap.IsRtl,
		ScrollTime:  m.snap.ScrollTime,
	}
	var err error
	if m.slats.State() == slats.Unmounted {
		err = m.slats.Mount(p, m.grid())
	} else {
		err = m.slats.Update(p, m.grid())
	}
	if err != nil {
		m.err = err
		appLog.Error("tui sizing failed", err)
	}
	m.scroll = layout.ClampScroll(m.scroll, m.totalWidth(), m.clientWidth())
}

func (m *Model) resourceWidth() int {
	w := m.ctrl.Config().ResourceAreaWidth
	if w > m.width/2 {
		w = m.width / 2
	}
	return w
}

func (m *Model) clientWidth() int {
	return m.width - m.resourceWidth()
}

func (m *Model) grid() layout.Grid {
	cw := m.clientWidth()
	return layout.Grid{
		ClientWidth:  cw,
		MinSlotWidth: m.ctrl.Config().SlotWidth,
		Hidden:       cw <= 0,
	}
}

func (m *Model) totalWidth() int {
	c, ok := m.slats.Coords()
	if !ok {
		return 0
	}
	b := c.Bounds()
	return int(b.Right - b.Left)
}

func (m *Model) step() int {
	return m.ctrl.Config().SlotWidth
}

func (m *Model) scrollBy(d int) {
	m.scroll = layout.ClampScroll(m.scroll+d, m.totalWidth(), m.clientWidth())
}

// scrollTo answers a scroll request from the slats. In RTL the requested
// time sits at the right edge of the viewport.
func (m *Model) scrollTo(left float64) {
	col := int(math.Round(left))
	if m.snap.IsRtl {
		col -= m.clientWidth()
	}
	m.scroll = layout.ClampScroll(col, m.totalWidth(), m.clientWidth())
}

// contentX maps a terminal column onto the slot area, aiming at the middle
// of the cell.
func (m *Model) contentX(screenX int) (float64, bool) {
	col := screenX
	if !m.snap.IsRtl {
		col -= m.resourceWidth()
	}
	if col < 0 || col >= m.clientWidth() {
		return 0, false
	}
	return float64(col+m.scroll) + 0.5, true
}

func (m *Model) headerLines() int {
	if m.snap.Profile != nil && len(render.MajorGroups(m.snap.Profile)) > 0 {
		return 2
	}
	return 1
}

// rows stacks the visible occurrences, with edits and the drag preview
// applied.
func (m *Model) rows(coords *timeline.Coords) []render.Row {
	occs := make([]model.Occurrence, 0, len(m.snap.Occurrences))
	for _, occ := range m.snap.Occurrences {
		if e, ok := m.edits[occ.InstanceKey]; ok {
			occ = e
		}
		if m.drag != nil && m.drag.valid && m.drag.preview.InstanceKey == occ.InstanceKey {
			occ = m.drag.preview
		}
		occs = append(occs, occ)
	}
	slices.SortStableFunc(occs, func(a, b model.Occurrence) int {
		return a.Start.Compare(b.Start)
	})

	edited := view.Snapshot{Occurrences: occs}
	rows := make([]render.Row, 0, len(m.snap.Resources))
	for _, res := range m.snap.Resources {
		rows = append(rows, render.BuildRow(res, edited.RowOccurrences(res.ID), coords))
	}
	return rows
}

// rowAt finds the resource row and lane drawn on terminal line y.
func (m *Model) rowAt(rows []render.Row, y int) (render.Row, int, bool) {
	line := y
	if m.ctrl.Config().DatesAboveResources {
		line -= m.headerLines()
	}
	if line < 0 {
		return render.Row{}, 0, false
	}
	for _, r := range rows {
		if line < r.Lanes {
			return r, line, true
		}
		line -= r.Lanes
	}
	return render.Row{}, 0, false
}

func (m *Model) beginDrag(screenX, y int) {
	coords, ok := m.slats.Coords()
	if !ok {
		return
	}
	x, ok := m.contentX(screenX)
	if !ok {
		return
	}
	row, lane, ok := m.rowAt(m.rows(coords), y)
	if !ok {
		return
	}
	hit, ok := m.slats.PositionToHit(x)
	if !ok {
		return
	}
	for _, b := range row.Bars {
		if b.Lane != lane || x < b.Span.Left || x >= b.Span.Right {
			continue
		}
		kind := interact.Move
		if b.Span.Right-b.Span.Left >= 3 {
			nearLeft, nearRight := x < b.Span.Left+1, x >= b.Span.Right-1
			startEdge, endEdge := nearLeft, nearRight
			if m.snap.IsRtl {
				startEdge, endEdge = nearRight, nearLeft
			}
			switch {
			case startEdge:
				kind = interact.ResizeStart
			case endEdge:
				kind = interact.ResizeEnd
			}
		}
		m.drag = &dragState{
			drag:     interact.Begin(kind, b.Occ, hit, row.Resource.ID),
			resource: row.Resource.ID,
			preview:  b.Occ,
		}
		m.status = fmt.Sprintf("%s %q", kind, b.Occ.Summary)
		return
	}
}

func (m *Model) moveDrag(screenX, y int) {
	x, ok := m.contentX(screenX)
	if !ok {
		return
	}
	hit, ok := m.slats.PositionToHit(x)
	if !ok {
		return
	}
	resource := m.drag.resource
	if coords, ok := m.slats.Coords(); ok {
		if row, _, ok := m.rowAt(m.rows(coords), y); ok {
			resource = row.Resource.ID
		}
	}
	out, err := m.drag.drag.Apply(hit, resource)
	if err != nil {
		m.drag.valid = false
		m.status = err.Error()
		return
	}
	m.drag.preview, m.drag.valid = out, true
}

func (m *Model) endDrag() {
	d := m.drag
	m.drag = nil
	if !d.valid {
		return
	}
	occ := d.preview
	m.edits[occ.InstanceKey] = occ
	m.status = fmt.Sprintf("%s %q to %s .. %s", d.drag.Kind(), occ.Summary,
		datemath.FormatMarker(occ.Start), datemath.FormatMarker(occ.End))
	appLog.Info("tui drag applied",
		"kind", d.drag.Kind().String(),
		"instance_key", occ.InstanceKey,
		"start", datemath.FormatMarker(occ.Start),
		"end", datemath.FormatMarker(occ.End),
		"resources", occ.ResourceIDs,
	)
}
