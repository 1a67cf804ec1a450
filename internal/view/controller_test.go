package view

import (
	"context"
	"errors"
	"testing"
	"time"

	"timelinecal/internal/apperr"
	"timelinecal/internal/config"
	"timelinecal/internal/datemath"
	"timelinecal/internal/ics"
	"timelinecal/internal/model"
)

var wednesday = time.Date(2017, 6, 7, 10, 30, 0, 0, time.UTC)

func mustMarker(t *testing.T, s string) time.Time {
	t.Helper()
	m, _, err := datemath.ParseMarker(s)
	if err != nil {
		t.Fatalf("ParseMarker(%q): %v", s, err)
	}
	return m
}

func newController(t *testing.T, cfg *config.Config, opts ...Option) *Controller {
	t.Helper()
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestResolveDefaultWeek(t *testing.T) {
	c := newController(t, config.DefaultConfig())
	dp, tp, err := c.Resolve(wednesday, Overrides{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := datemath.Range{Start: mustMarker(t, "2017-06-05"), End: mustMarker(t, "2017-06-12")}
	if !dp.ActiveRange.Equal(want) {
		t.Errorf("active range = %s, want %s", dp.ActiveRange, want)
	}
	if tp.SlotCount() != 7*24 || !tp.IsTimeScale {
		t.Errorf("slots = %d time-scale=%v", tp.SlotCount(), tp.IsTimeScale)
	}

	// Same inputs hand back the memoized profile.
	_, again, _ := c.Resolve(wednesday, Overrides{})
	if again != tp {
		t.Error("expected the cached profile pointer")
	}
}

func TestResolveOverrides(t *testing.T) {
	c := newController(t, config.DefaultConfig())

	tests := []struct {
		name      string
		o         Overrides
		start     string
		end       string
		slotCount int
	}{
		{"day view", Overrides{View: "resourceTimelineDay"}, "2017-06-07", "2017-06-08", 24},
		{"next week", Overrides{Shift: 1}, "2017-06-12", "2017-06-19", 168},
		{"explicit date", Overrides{Date: "2017-01-02", Slot: "1d"}, "2017-01-02", "2017-01-09", 7},
		{"visible range", Overrides{Start: "2017-06-07", End: "2017-06-09", Slot: "1d"}, "2017-06-07", "2017-06-09", 2},
		{"auto slot month", Overrides{View: "timelineMonth", Slot: "00:00"}, "2017-06-01", "2017-07-01", 30},
		{"year by month", Overrides{View: "timelineYear", Slot: "1mo"}, "2017-01-01", "2018-01-01", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dp, tp, err := c.Resolve(wednesday, tt.o)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			want := datemath.Range{Start: mustMarker(t, tt.start), End: mustMarker(t, tt.end)}
			if !dp.ActiveRange.Equal(want) {
				t.Errorf("active range = %s, want %s", dp.ActiveRange, want)
			}
			if tp.SlotCount() != tt.slotCount {
				t.Errorf("slot count = %d, want %d", tp.SlotCount(), tt.slotCount)
			}
		})
	}
}

func TestResolveAutomaticSlotFromRangeUnit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.InitialView = "resourceTimeline"
	cfg.SlotDuration = datemath.Duration{}
	c := newController(t, cfg)

	tests := []struct {
		start, end string
		slot       datemath.Duration
		slats      []string
	}{
		{"2017-06-07", "2017-06-09", datemath.Days(1), []string{"2017-06-07", "2017-06-08"}},
		{"2017-01", "2019-01", datemath.Years(1), []string{"2017-01-01", "2018-01-01"}},
	}
	for _, tt := range tests {
		_, tp, err := c.Resolve(wednesday, Overrides{Start: tt.start, End: tt.end})
		if err != nil {
			t.Fatalf("Resolve(%s..%s): %v", tt.start, tt.end, err)
		}
		if tp.SlotDuration != tt.slot || tp.SlotCount() != len(tt.slats) {
			t.Fatalf("%s..%s: slot %s x%d, want %s x%d", tt.start, tt.end, tp.SlotDuration, tp.SlotCount(), tt.slot, len(tt.slats))
		}
		for i, want := range tt.slats {
			if !tp.SlotDates[i].Equal(mustMarker(t, want)) {
				t.Errorf("slat %d = %s, want %s", i, datemath.FormatMarker(tp.SlotDates[i]), want)
			}
		}
	}
}

func TestResolveShiftMonthFromMonthEnd(t *testing.T) {
	c := newController(t, config.DefaultConfig())
	jan31 := time.Date(2017, 1, 31, 12, 0, 0, 0, time.UTC)

	dp, _, err := c.Resolve(jan31, Overrides{View: "resourceTimelineMonth", Slot: "1d", Shift: 1})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := datemath.Range{Start: mustMarker(t, "2017-02-01"), End: mustMarker(t, "2017-03-01")}
	if !dp.CurrentRange.Equal(want) {
		t.Errorf("next month = %s, want %s", dp.CurrentRange, want)
	}
}

func TestResolveRejects(t *testing.T) {
	c := newController(t, config.DefaultConfig())
	for _, o := range []Overrides{
		{View: "agendaWeek"},
		{Date: "yesterday"},
		{Slot: "soon"},
		{Slot: "-01:00"},
		{Start: "2017-06-09", End: "2017-06-07"},
		{Start: "2017-06-09"},
		{View: "timelineYear", Slot: "00:00:01"},
	} {
		if _, _, err := c.Resolve(wednesday, o); !errors.Is(err, apperr.ErrConfig) {
			t.Errorf("Resolve(%+v) err = %v, want ErrConfig", o, err)
		}
	}
}

func TestSetConfigKeepsPreviousOnError(t *testing.T) {
	c := newController(t, config.DefaultConfig())
	bad := config.DefaultConfig()
	bad.InitialView = "nope"
	if err := c.SetConfig(bad); err == nil {
		t.Fatal("expected error")
	}
	if c.Config().InitialView != "resourceTimelineWeek" {
		t.Errorf("config replaced by invalid one: %q", c.Config().InitialView)
	}

	seoul := config.DefaultConfig()
	seoul.Timezone = "Asia/Seoul"
	if err := c.SetConfig(seoul); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	// 2017-06-07T20:00Z is already Thursday morning in Seoul.
	dp, _, err := c.Resolve(time.Date(2017, 6, 7, 20, 0, 0, 0, time.UTC), Overrides{View: "timelineDay"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !dp.CurrentRange.Start.Equal(mustMarker(t, "2017-06-08")) {
		t.Errorf("day = %s", dp.CurrentRange)
	}
}

func TestSnapshotRows(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resources = []model.Resource{{ID: "a", Title: "Room A"}, {ID: "b", Title: "Room B"}}
	cfg.Events = []config.EventConfig{
		{ID: "e1", Title: "Review", Start: "2017-06-06T09:00", End: "2017-06-06T11:00", ResourceID: "a"},
		{ID: "e2", Title: "Lunch", Start: "2017-06-07T12:00"},
		{ID: "e3", Title: "Next week", Start: "2017-06-14T12:00", ResourceID: "b"},
	}
	loader := ics.NewLoader(ics.NewFetcher(t.TempDir(), nil), time.Minute)
	c := newController(t, cfg, WithEvents(loader))

	snap, err := c.Snapshot(context.Background(), wednesday, Overrides{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Occurrences) != 2 {
		t.Fatalf("occurrences = %+v", snap.Occurrences)
	}
	if len(snap.Resources) != 3 || snap.Resources[2].ID != UnassignedResourceID {
		t.Errorf("resources = %+v", snap.Resources)
	}
	if got := snap.RowOccurrences("a"); len(got) != 1 || got[0].UID != "e1" {
		t.Errorf("row a = %+v", got)
	}
	if got := snap.RowOccurrences("b"); len(got) != 0 {
		t.Errorf("row b = %+v", got)
	}
	if got := snap.RowOccurrences(UnassignedResourceID); len(got) != 1 || got[0].UID != "e2" {
		t.Errorf("unassigned row = %+v", got)
	}
	if snap.IsRtl || snap.ScrollTime != datemath.Hours(8) {
		t.Errorf("rtl=%v scroll=%s", snap.IsRtl, snap.ScrollTime)
	}
}

func TestSnapshotWithoutEvents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resources = []model.Resource{{ID: "a", Title: "Room A"}}
	c := newController(t, cfg)
	snap, err := c.Snapshot(context.Background(), wednesday, Overrides{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Occurrences) != 0 || len(snap.Resources) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}
