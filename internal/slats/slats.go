// Package slats owns the measured slot geometry of a mounted timeline. It
// rebuilds the coordinate cache whenever layout inputs change, publishes it
// to subscribers and answers hit-tests and scroll requests against it.
//
// A Slats is driven from a single UI loop and is not safe for concurrent use.
package slats

import (
	"errors"
	"fmt"

	"timelinecal/internal/datemath"
	"timelinecal/internal/log"
	"timelinecal/internal/profile"
	"timelinecal/internal/timeline"
)

// State is the lifecycle position of a Slats.
type State int

const (
	Unmounted State = iota
	Mounted
	Sizing
	Ready
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounted:
		return "mounted"
	case Sizing:
		return "sizing"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrNotMounted = errors.New("slats: not mounted")

// Measurer lays out slot cells. layout.Grid is the usual implementation.
type Measurer interface {
	// Width is the client width, zero when unknown.
	Width() int
	// Visible is false while the container is hidden or zero sized.
	Visible() bool
	Measure(n int, rtl bool) []timeline.Cell
}

// Props are the render inputs of the slats.
type Props struct {
	DateProfile profile.DateProfile
	Profile     *timeline.Profile
	IsRtl       bool
	// ScrollTime is scrolled to on mount and whenever the date profile
	// changes.
	ScrollTime datemath.Duration
}

type Slats struct {
	state  State
	props  Props
	width  int
	coords *timeline.Coords

	subs   map[int]func(*timeline.Coords)
	nextID int

	pendingScroll *datemath.Duration
	onScroll      func(left float64)
}

func New() *Slats {
	return &Slats{subs: make(map[int]func(*timeline.Coords))}
}

func (s *Slats) State() State { return s.state }

// Mount attaches the slats and sizes them if the measurer allows it.
func (s *Slats) Mount(p Props, m Measurer) error {
	if s.state != Unmounted {
		return fmt.Errorf("slats: mount while %s", s.state)
	}
	s.state = Mounted
	s.props = p
	s.width = m.Width()
	s.requestScroll(p.ScrollTime)
	return s.UpdateSizing(m)
}

// Update applies new props. Any change that affects geometry invalidates
// the published coords before re-measuring.
func (s *Slats) Update(p Props, m Measurer) error {
	if s.state == Unmounted {
		return ErrNotMounted
	}
	prev := s.props
	dateChanged := !prev.DateProfile.Equal(p.DateProfile)
	layoutChanged := dateChanged ||
		prev.Profile != p.Profile ||
		prev.IsRtl != p.IsRtl ||
		s.width != m.Width()

	s.props = p
	s.width = m.Width()
	if dateChanged {
		s.requestScroll(p.ScrollTime)
	}
	if layoutChanged || s.state != Ready {
		s.Invalidate()
		return s.UpdateSizing(m)
	}
	return nil
}

// Invalidate drops the current coords. Subscribers see nil until the next
// successful sizing.
func (s *Slats) Invalidate() {
	if s.state == Unmounted {
		return
	}
	s.state = Sizing
	s.setCoords(nil)
}

// UpdateSizing measures the cells and builds the coords. It does nothing
// while the container is hidden or its width unknown, leaving the slats in
// Sizing.
func (s *Slats) UpdateSizing(m Measurer) error {
	if s.state == Unmounted {
		return ErrNotMounted
	}
	if s.state == Ready {
		return nil
	}
	s.state = Sizing
	if s.props.Profile == nil || m.Width() <= 0 || !m.Visible() {
		log.Debug("slats sizing skipped", "width", m.Width(), "visible", m.Visible())
		return nil
	}

	cells := m.Measure(s.props.Profile.SlotCount(), s.props.IsRtl)
	c, err := timeline.NewCoords(cells, s.props.Profile, s.props.IsRtl)
	if err != nil {
		return err
	}
	s.state = Ready
	s.setCoords(c)
	s.flushScroll()
	return nil
}

// Unmount publishes nil and detaches. Subscriptions survive a remount.
func (s *Slats) Unmount() {
	if s.state == Unmounted {
		return
	}
	s.setCoords(nil)
	s.state = Unmounted
	s.pendingScroll = nil
}

// Subscribe registers fn for coords changes and calls it immediately with
// the current value.
func (s *Slats) Subscribe(fn func(*timeline.Coords)) (unsubscribe func()) {
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	fn(s.coords)
	return func() { delete(s.subs, id) }
}

// Coords returns the current coordinate cache, if any.
func (s *Slats) Coords() (*timeline.Coords, bool) {
	if s.state != Ready || s.coords == nil {
		return nil, false
	}
	return s.coords, true
}

// PositionToHit hit-tests pixel x. It reports false unless the slats are
// sized.
func (s *Slats) PositionToHit(x float64) (timeline.Hit, bool) {
	c, ok := s.Coords()
	if !ok {
		return timeline.Hit{}, false
	}
	return c.PositionToHit(x)
}

// OnScroll sets the callback receiving scroll offsets for requests.
func (s *Slats) OnScroll(fn func(left float64)) {
	s.onScroll = fn
	s.flushScroll()
}

// RequestScroll asks for the view to scroll to active start plus d. The
// request is answered as soon as coords are available.
func (s *Slats) RequestScroll(d datemath.Duration) {
	s.requestScroll(d)
	s.flushScroll()
}

func (s *Slats) requestScroll(d datemath.Duration) {
	s.pendingScroll = &d
}

func (s *Slats) flushScroll() {
	if s.pendingScroll == nil || s.onScroll == nil {
		return
	}
	c, ok := s.Coords()
	if !ok {
		return
	}
	left := c.ComputeDurationLeft(*s.pendingScroll)
	s.pendingScroll = nil
	s.onScroll(left)
}

func (s *Slats) setCoords(c *timeline.Coords) {
	if s.coords == c {
		return
	}
	s.coords = c
	for _, fn := range s.subs {
		fn(c)
	}
}
