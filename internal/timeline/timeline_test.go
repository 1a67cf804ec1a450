package timeline

import (
	"errors"
	"testing"
	"time"

	"timelinecal/internal/apperr"
	"timelinecal/internal/datemath"
	"timelinecal/internal/profile"
)

var env = datemath.Env{Location: time.UTC, FirstDay: time.Monday}

func marker(t *testing.T, s string) time.Time {
	t.Helper()
	m, _, err := datemath.ParseMarker(s)
	if err != nil {
		t.Fatalf("ParseMarker(%q): %v", s, err)
	}
	return m
}

func dateProfile(t *testing.T, start, end string) profile.DateProfile {
	t.Helper()
	vr, err := profile.ParseVisibleRange(env, start, end)
	if err != nil {
		t.Fatalf("ParseVisibleRange: %v", err)
	}
	dp, err := profile.Resolve(env, profile.Policy{VisibleRange: vr}, vr.Start, "timeline")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return dp
}

func build(t *testing.T, start, end string, slot, snap datemath.Duration) *Profile {
	t.Helper()
	tp, err := Build(dateProfile(t, start, end), env, Params{Slot: slot, Snap: snap})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tp
}

// gridCells lays n cells of width w side by side, right to left when rtl.
func gridCells(n int, w float64, rtl bool) []Cell {
	cells := make([]Cell, n)
	for i := range cells {
		if rtl {
			right := float64(n-i) * w
			cells[i] = Cell{Left: right - w, Right: right}
		} else {
			cells[i] = Cell{Left: float64(i) * w, Right: float64(i+1) * w}
		}
	}
	return cells
}

func coords(t *testing.T, tp *Profile, w float64, rtl bool) *Coords {
	t.Helper()
	c, err := NewCoords(gridCells(tp.SlotCount(), w, rtl), tp, rtl)
	if err != nil {
		t.Fatalf("NewCoords: %v", err)
	}
	return c
}

func TestBuildDaySlots(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-09", datemath.Days(1), datemath.Duration{})

	if tp.SlotCount() != 2 {
		t.Fatalf("slot count = %d, want 2", tp.SlotCount())
	}
	for i, want := range []string{"2017-06-07", "2017-06-08"} {
		if !tp.SlotDates[i].Equal(marker(t, want)) {
			t.Errorf("slat %d = %s, want %s", i, tp.SlotDates[i], want)
		}
	}
	if !tp.SlotDates[2].Equal(marker(t, "2017-06-09")) {
		t.Errorf("terminal boundary = %s", tp.SlotDates[2])
	}
	if tp.IsTimeScale || tp.LargeUnit != "" || !tp.IsDay() {
		t.Errorf("classification: time scale %v, large unit %q", tp.IsTimeScale, tp.LargeUnit)
	}
	if tp.SnapDuration != tp.SlotDuration || tp.SnapsPerSlot != 1 {
		t.Errorf("snap should default to slot, got %v x%d", tp.SnapDuration, tp.SnapsPerSlot)
	}
}

func TestBuildYearSlots(t *testing.T) {
	tp := build(t, "2017-01", "2019-01", datemath.Years(1), datemath.Duration{})

	if tp.SlotCount() != 2 {
		t.Fatalf("slot count = %d, want 2", tp.SlotCount())
	}
	if !tp.SlotDates[0].Equal(marker(t, "2017-01-01")) || !tp.SlotDates[1].Equal(marker(t, "2018-01-01")) {
		t.Errorf("slot dates = %v", tp.SlotDates)
	}
	if tp.LargeUnit != datemath.UnitYear {
		t.Errorf("large unit = %q", tp.LargeUnit)
	}
}

func TestBuildClipsLastSlot(t *testing.T) {
	tp := build(t, "2017-06-05", "2017-06-15", datemath.Weeks(1), datemath.Duration{})

	if tp.SlotCount() != 2 {
		t.Fatalf("slot count = %d", tp.SlotCount())
	}
	if last := tp.SlotRange(1); !last.End.Equal(marker(t, "2017-06-15")) {
		t.Errorf("last slot = %v", last)
	}
	if tp.LargeUnit != datemath.UnitWeek {
		t.Errorf("large unit = %q", tp.LargeUnit)
	}
	if !tp.IsWeekStarts[0] || !tp.IsWeekStarts[1] {
		t.Errorf("both slats start on a monday: %v", tp.IsWeekStarts)
	}
}

func TestBuildMonthSlotsDoNotDrift(t *testing.T) {
	vr := datemath.Range{Start: marker(t, "2017-01-31"), End: marker(t, "2017-06-01")}
	dp, err := profile.Resolve(env, profile.Policy{VisibleRange: &vr}, vr.Start, "timeline")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tp, err := Build(dp, env, Params{Slot: datemath.Months(1)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Each boundary is start + i months, so March lands on the 31st again
	// instead of carrying February's overflow forward.
	if got := tp.SlotDates[2]; !got.Equal(marker(t, "2017-03-31")) {
		t.Errorf("third boundary = %s", got)
	}
}

func TestBuildWeekStarts(t *testing.T) {
	tp := build(t, "2017-06-01", "2017-06-15", datemath.Days(1), datemath.Duration{})
	for i, d := range tp.SlotDates {
		if want := d.Weekday() == time.Monday; tp.IsWeekStarts[i] != want {
			t.Errorf("IsWeekStarts[%d] (%s) = %v", i, d.Weekday(), tp.IsWeekStarts[i])
		}
	}

	hourly := build(t, "2017-06-05", "2017-06-06", datemath.Hours(1), datemath.Duration{})
	for i, ws := range hourly.IsWeekStarts {
		if ws {
			t.Errorf("time scale slot %d marked as week start", i)
		}
	}
}

func TestBuildSnapsPerSlot(t *testing.T) {
	tests := []struct {
		slot, snap datemath.Duration
		want       int
	}{
		{datemath.Hours(1), datemath.Minutes(15), 4},
		{datemath.Days(1), datemath.Hours(6), 4},
		{datemath.Weeks(1), datemath.Days(1), 7},
		{datemath.Hours(1), datemath.Minutes(25), 2},
		{datemath.Minutes(15), datemath.Hours(1), 1},
	}
	for _, tt := range tests {
		tp := build(t, "2017-06-05", "2017-06-19", tt.slot, tt.snap)
		if tp.SnapsPerSlot != tt.want {
			t.Errorf("%s / %s = %d, want %d", tt.slot, tt.snap, tp.SnapsPerSlot, tt.want)
		}
	}
}

func TestBuildSnapsPerSlotExactWhenDivisible(t *testing.T) {
	pairs := [][2]datemath.Duration{
		{datemath.Hours(1), datemath.Minutes(15)},
		{datemath.Hours(2), datemath.Minutes(30)},
		{datemath.Days(1), datemath.Hours(1)},
		{datemath.Weeks(1), datemath.Days(1)},
	}
	for _, pr := range pairs {
		tp := build(t, "2017-06-05", "2017-06-19", pr[0], pr[1])
		got := tp.SnapDuration.Multiply(tp.SnapsPerSlot)
		if got.AsRoughMs() != tp.SlotDuration.AsRoughMs() {
			t.Errorf("%s x %d = %s, want %s", tp.SnapDuration, tp.SnapsPerSlot, got, tp.SlotDuration)
		}
	}
}

func TestBuildStrictSnap(t *testing.T) {
	dp := dateProfile(t, "2017-06-05", "2017-06-06")
	_, err := Build(dp, env, Params{Slot: datemath.Hours(1), Snap: datemath.Minutes(25), StrictSnap: true})
	if !errors.Is(err, apperr.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestBuildRejectsBadSlots(t *testing.T) {
	dp := dateProfile(t, "2017-06-05", "2017-06-06")
	for _, p := range []Params{
		{},
		{Slot: datemath.Minutes(-30)},
		{Slot: datemath.Hours(1), Snap: datemath.Minutes(-5)},
		{Slot: datemath.Seconds(1)}, // 86400 slots
	} {
		if _, err := Build(dp, env, p); !errors.Is(err, apperr.ErrConfig) {
			t.Errorf("Build(%+v): expected ErrConfig, got %v", p, err)
		}
	}
}

func TestFallbackSlotDuration(t *testing.T) {
	tests := []struct {
		start, end string
		want       datemath.Duration
	}{
		{"2017-06-07", "2017-06-08", datemath.Minutes(30)},
		{"2017-06-01", "2017-07-01", datemath.Days(1)},
		{"2017-01-01", "2018-01-01", datemath.Weeks(1)},
		{"2000-01-01", "2050-01-01", datemath.Years(1)},
	}
	for _, tt := range tests {
		r := datemath.Range{Start: marker(t, tt.start), End: marker(t, tt.end)}
		if got := FallbackSlotDuration(r); got != tt.want {
			t.Errorf("FallbackSlotDuration(%v) = %s, want %s", r, got, tt.want)
		}
	}
}

func TestIsDay(t *testing.T) {
	tests := []struct {
		slot datemath.Duration
		want bool
	}{
		{datemath.Days(1), true},
		{datemath.Days(2), true},
		{datemath.Hours(6), false},
		{datemath.Weeks(1), false},
	}
	for _, tt := range tests {
		tp := build(t, "2017-06-05", "2017-06-19", tt.slot, datemath.Duration{})
		if got := tp.IsDay(); got != tt.want {
			t.Errorf("IsDay with %s slots = %v, want %v", tt.slot, got, tt.want)
		}
	}
}

func TestAutoSlotDuration(t *testing.T) {
	tests := []struct {
		start, end string
		want       datemath.Duration
	}{
		{"2017-06-07", "2017-06-09", datemath.Days(1)},
		{"2017-01", "2019-01", datemath.Years(1)},
		{"2017-01", "2017-04", datemath.Months(1)},
		{"2017-06-05", "2017-06-19", datemath.Weeks(1)},
		// A single unit falls back to the slot-count heuristic.
		{"2017-06-07", "2017-06-08", datemath.Minutes(30)},
		{"2017-06-01", "2017-07-01", datemath.Days(1)},
		// Too many whole days.
		{"2017-01-02", "2017-12-30", datemath.Weeks(1)},
	}
	for _, tt := range tests {
		dp := dateProfile(t, tt.start, tt.end)
		if got := AutoSlotDuration(dp); got != tt.want {
			t.Errorf("AutoSlotDuration(%s, %s) = %s, want %s", dp.CurrentRange, dp.CurrentRangeUnit, got, tt.want)
		}
	}
}

func TestCacheReturnsSamePointer(t *testing.T) {
	var c Cache
	dp := dateProfile(t, "2017-06-07", "2017-06-09")
	p := Params{Slot: datemath.Hours(1)}

	a, err := c.Get(dp, env, p)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := c.Get(dp, env, p)
	if a != b {
		t.Error("unchanged inputs must return the same profile")
	}

	d, _ := c.Get(dp, env, Params{Slot: datemath.Hours(2)})
	if d == a {
		t.Error("new slot duration must rebuild")
	}
	c.Reset()
	e, _ := c.Get(dp, env, Params{Slot: datemath.Hours(2)})
	if e == d {
		t.Error("reset must drop the memoized profile")
	}
}

func TestNewCoordsValidation(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-09", datemath.Days(1), datemath.Duration{})
	bad := [][]Cell{
		{{0, 10}},
		{{0, 10}, {10, 10}},
		{{0, 10}, {5, 20}},
	}
	for _, cells := range bad {
		if _, err := NewCoords(cells, tp, false); !errors.Is(err, ErrGeometry) {
			t.Errorf("NewCoords(%v): expected ErrGeometry, got %v", cells, err)
		}
	}
	// LTR-ordered cells are not valid RTL geometry.
	if _, err := NewCoords(gridCells(2, 10, false), tp, true); !errors.Is(err, ErrGeometry) {
		t.Errorf("expected ErrGeometry for ltr cells in rtl, got %v", err)
	}
}

func TestLeftToIndexBoundaries(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-10", datemath.Days(1), datemath.Duration{})

	ltr := coords(t, tp, 100, false)
	for x, want := range map[float64]int{0: 0, 99.9: 0, 100: 1, 299.9: 2} {
		if got, ok := ltr.LeftToIndex(x); !ok || got != want {
			t.Errorf("ltr LeftToIndex(%v) = %d, %v; want %d", x, got, ok, want)
		}
	}
	for _, x := range []float64{-1, 300} {
		if _, ok := ltr.LeftToIndex(x); ok {
			t.Errorf("ltr LeftToIndex(%v) should miss", x)
		}
	}

	rtl := coords(t, tp, 100, true)
	// Slot 0 occupies (200, 300]; its leading edge is 300.
	for x, want := range map[float64]int{300: 0, 200.1: 0, 200: 1, 0.1: 2} {
		if got, ok := rtl.LeftToIndex(x); !ok || got != want {
			t.Errorf("rtl LeftToIndex(%v) = %d, %v; want %d", x, got, ok, want)
		}
	}
	for _, x := range []float64{0, 300.5} {
		if _, ok := rtl.LeftToIndex(x); ok {
			t.Errorf("rtl LeftToIndex(%v) should miss", x)
		}
	}
}

func TestLeftToIndexMonotonic(t *testing.T) {
	tp := build(t, "2017-06-01", "2017-07-01", datemath.Days(1), datemath.Duration{})
	for _, rtl := range []bool{false, true} {
		c := coords(t, tp, 37, rtl)
		prev := -1
		for x := 0.5; x < 37*30; x += 3.7 {
			i, ok := c.LeftToIndex(x)
			if !ok {
				t.Fatalf("rtl=%v: %v missed", rtl, x)
			}
			if prev >= 0 {
				if !rtl && i < prev || rtl && i > prev {
					t.Fatalf("rtl=%v: index went from %d to %d at %v", rtl, prev, i, x)
				}
			}
			prev = i
		}
	}
}

func TestPositionToHitResize(t *testing.T) {
	tp := build(t, "2015-11-28", "2015-11-29", datemath.Hours(1), datemath.Minutes(15))
	if tp.SnapsPerSlot != 4 {
		t.Fatalf("snaps per slot = %d", tp.SnapsPerSlot)
	}

	for _, rtl := range []bool{false, true} {
		c := coords(t, tp, 100, rtl)
		// Slot 07:00 plus half a slot.
		x := c.Cell(7).Left + 50
		hit, ok := c.PositionToHit(x)
		if !ok {
			t.Fatalf("rtl=%v: no hit", rtl)
		}
		if hit.SlotIndex != 7 || hit.DateSpan.AllDay {
			t.Errorf("rtl=%v: hit = %+v", rtl, hit)
		}
		if want := marker(t, "2015-11-28T07:45"); !hit.DateSpan.Range.End.Equal(want) {
			t.Errorf("rtl=%v: end = %s, want %s", rtl, hit.DateSpan.Range.End, want)
		}
	}
}

func TestPositionToHitRoundTrip(t *testing.T) {
	tp := build(t, "2015-11-28", "2015-11-29", datemath.Hours(1), datemath.Minutes(15))
	for _, rtl := range []bool{false, true} {
		c := coords(t, tp, 80, rtl)
		for i := 0; i < tp.SlotCount(); i++ {
			cell := c.Cell(i)
			for j := 0; j < tp.SnapsPerSlot; j++ {
				// Centre of snap j, measured from the leading edge.
				off := (float64(j) + 0.5) * cell.Width() / float64(tp.SnapsPerSlot)
				x := cell.Left + off
				if rtl {
					x = cell.Right - off
				}
				hit, ok := c.PositionToHit(x)
				if !ok {
					t.Fatalf("rtl=%v slot %d snap %d: no hit", rtl, i, j)
				}
				want := tp.SnapDuration.Multiply(j).AddTo(tp.SlotDates[i])
				if !hit.DateSpan.Range.Start.Equal(want) {
					t.Fatalf("rtl=%v slot %d snap %d: start %s, want %s", rtl, i, j, hit.DateSpan.Range.Start, want)
				}
			}
		}
	}
}

func TestPositionToHitBoundaryPixel(t *testing.T) {
	tp := build(t, "2015-11-01", "2015-11-08", datemath.Days(1), datemath.Duration{})
	c := coords(t, tp, 50, false)

	hit, ok := c.PositionToHit(100)
	if !ok {
		t.Fatal("no hit")
	}
	if hit.SlotIndex != 2 || !hit.DateSpan.Range.Start.Equal(marker(t, "2015-11-03")) {
		t.Errorf("boundary pixel hit = %+v", hit)
	}
	if !hit.DateSpan.AllDay {
		t.Error("day slots produce all-day spans")
	}
	if hit.Left != 100 || hit.Right != 150 {
		t.Errorf("cell = [%v, %v]", hit.Left, hit.Right)
	}

	if _, ok := c.PositionToHit(350); ok {
		t.Error("pixel past the last cell should miss")
	}
}

func TestDateToCoord(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-09", datemath.Days(1), datemath.Duration{})

	ltr := coords(t, tp, 100, false)
	rtl := coords(t, tp, 100, true)
	tests := []struct {
		date     string
		ltr, rtl float64
	}{
		{"2017-06-07", 0, 200},
		{"2017-06-07T12:00", 50, 150},
		{"2017-06-08T06:00", 125, 75},
		{"2017-06-09", 200, 0},
		{"2017-01-01", 0, 200},
		{"2018-01-01", 200, 0},
	}
	for _, tt := range tests {
		d := marker(t, tt.date)
		if got := ltr.DateToCoord(d); got != tt.ltr {
			t.Errorf("ltr DateToCoord(%s) = %v, want %v", tt.date, got, tt.ltr)
		}
		if got := rtl.DateToCoord(d); got != tt.rtl {
			t.Errorf("rtl DateToCoord(%s) = %v, want %v", tt.date, got, tt.rtl)
		}
	}
}

func TestComputeDurationLeft(t *testing.T) {
	day := build(t, "2017-06-07", "2017-06-10", datemath.Days(1), datemath.Duration{})
	c := coords(t, day, 100, false)
	// Coarse slots floor to the day.
	if got := c.ComputeDurationLeft(datemath.Hours(30)); got != 100 {
		t.Errorf("day scale = %v, want 100", got)
	}

	hourly := build(t, "2017-06-07", "2017-06-08", datemath.Hours(1), datemath.Duration{})
	hc := coords(t, hourly, 10, false)
	if got := hc.ComputeDurationLeft(datemath.Minutes(90)); got != 15 {
		t.Errorf("time scale = %v, want 15", got)
	}
}

func TestRangeToSpan(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-10", datemath.Days(1), datemath.Duration{})
	c := coords(t, tp, 100, true)

	span, ok := c.RangeToSpan(datemath.Range{Start: marker(t, "2017-06-06"), End: marker(t, "2017-06-08T12:00")})
	if !ok {
		t.Fatal("overlapping range should map")
	}
	if span.Left != 150 || span.Right != 300 {
		t.Errorf("span = %+v", span)
	}

	if _, ok := c.RangeToSpan(datemath.Range{Start: marker(t, "2017-07-01"), End: marker(t, "2017-07-02")}); ok {
		t.Error("range outside the active range should not map")
	}
}

func TestLeftsRightsAreCopies(t *testing.T) {
	tp := build(t, "2017-06-07", "2017-06-09", datemath.Days(1), datemath.Duration{})
	c := coords(t, tp, 10, false)
	l := c.Lefts()
	l[0] = 99
	if c.Lefts()[0] != 0 || c.Rights()[1] != 20 || c.Len() != 2 {
		t.Errorf("lefts %v rights %v", c.Lefts(), c.Rights())
	}
	if b := c.Bounds(); b.Left != 0 || b.Right != 20 {
		t.Errorf("bounds = %+v", b)
	}
}
