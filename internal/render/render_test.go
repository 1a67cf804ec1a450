package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"timelinecal/internal/config"
	"timelinecal/internal/datemath"
	"timelinecal/internal/ics"
	"timelinecal/internal/model"
	"timelinecal/internal/timeline"
	"timelinecal/internal/view"
)

var wednesday = time.Date(2017, 6, 7, 10, 30, 0, 0, time.UTC)

func snapshot(t *testing.T, cfg *config.Config, o view.Overrides) view.Snapshot {
	t.Helper()
	loader := ics.NewLoader(ics.NewFetcher(t.TempDir(), nil), time.Minute)
	c, err := view.New(cfg, view.WithEvents(loader))
	if err != nil {
		t.Fatalf("view.New: %v", err)
	}
	snap, err := c.Snapshot(context.Background(), wednesday, o)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func dayConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.InitialView = "resourceTimelineDay"
	cfg.Resources = []model.Resource{{ID: "a", Title: "Room A"}}
	cfg.Events = []config.EventConfig{
		{ID: "e1", Title: "Review <A&B>", Start: "2017-06-07T09:00", End: "2017-06-07T11:00", ResourceID: "a"},
		{ID: "e2", Title: "Sync", Start: "2017-06-07T10:00", End: "2017-06-07T12:00", ResourceID: "a"},
	}
	return cfg
}

func TestSVGLayout(t *testing.T) {
	snap := snapshot(t, dayConfig(), view.Overrides{})
	opt := OptionsFromConfig(dayConfig())
	opt.Now = datemath.Env{}.ToMarker(wednesday)

	out, err := SVG(snap, opt)
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	for _, want := range []string{
		`width="1280" height="84"`,
		`data-view="resourceTimelineDay" data-start="2017-06-07" data-end="2017-06-08" data-slots="24"`,
		`<text class="label major" x="131.0" y="14">Wed Jun 7</text>`,
		`x="560.0" y="42" width="96.0" height="18"`,
		`x="608.0" y="64" width="96.0" height="18"`,
		`Review &lt;A&amp;B&gt;`,
		`<line class="now" x1="632.0"`,
		`>Room A</text>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if !strings.HasSuffix(out, "</svg>") {
		t.Error("svg not closed")
	}
}

func TestSVGRightToLeft(t *testing.T) {
	cfg := dayConfig()
	cfg.Direction = config.DirectionRTL
	cfg.Events = cfg.Events[:1]
	snap := snapshot(t, cfg, view.Overrides{})

	out, err := SVG(snap, OptionsFromConfig(cfg))
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	// 09:00..11:00 sits left of the 09:00 boundary in RTL.
	if !strings.Contains(out, `x="624.0" y="42" width="96.0"`) {
		t.Errorf("rtl event bar misplaced:\n%s", out)
	}
	if !strings.Contains(out, `x="1156" y="55">Room A</text>`) {
		t.Errorf("rtl resource label not on the right:\n%s", out)
	}
}

func TestSVGDatesBelow(t *testing.T) {
	cfg := dayConfig()
	cfg.DatesAboveResources = false
	snap := snapshot(t, cfg, view.Overrides{})
	out, err := SVG(snap, OptionsFromConfig(cfg))
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	// Two lanes of 22px, then the header.
	if !strings.Contains(out, `<text class="label major" x="131.0" y="58">`) {
		t.Errorf("header not below rows:\n%s", out)
	}
}

func TestSVGShadesWeekendDays(t *testing.T) {
	opt := OptionsFromConfig(dayConfig())

	week := snapshot(t, dayConfig(), view.Overrides{View: "resourceTimelineWeek", Slot: "1d"})
	out, err := SVG(week, opt)
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	if got := strings.Count(out, `<rect class="day-weekend"`); got != 2 {
		t.Errorf("weekend cells = %d, want 2", got)
	}

	hours := snapshot(t, dayConfig(), view.Overrides{View: "resourceTimelineWeek"})
	out, err = SVG(hours, opt)
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	if strings.Contains(out, `<rect class="day-weekend"`) {
		t.Error("hourly slots must not be shaded as days")
	}
}

func TestSVGRequiresProfile(t *testing.T) {
	if _, err := SVG(view.Snapshot{}, Options{}); err == nil {
		t.Error("expected error without a slot profile")
	}
}

func TestLabels(t *testing.T) {
	build := func(start, end string, slot datemath.Duration) *timeline.Profile {
		t.Helper()
		s, _, _ := datemath.ParseMarker(start)
		e, _, _ := datemath.ParseMarker(end)
		snap := snapshot(t, config.DefaultConfig(), view.Overrides{
			Start: datemath.FormatMarker(s),
			End:   datemath.FormatMarker(e),
			Slot:  slot.String(),
		})
		return snap.Profile
	}

	tests := []struct {
		name   string
		tp     *timeline.Profile
		first  string
		groups []string
	}{
		{"hours", build("2017-06-07T22:00", "2017-06-08T02:00", datemath.Hours(1)), "22:00", []string{"Wed Jun 7", "Thu Jun 8"}},
		{"days", build("2017-06-29", "2017-07-02", datemath.Days(1)), "Thu 29", []string{"June 2017", "July 2017"}},
		{"weeks", build("2017-06-05", "2017-07-03", datemath.Weeks(1)), "Jun 5", []string{"June 2017"}},
		{"months", build("2017-11-01", "2018-02-01", datemath.Months(1)), "Nov", []string{"2017", "2018"}},
		{"years", build("2017-01-01", "2019-01-01", datemath.Years(1)), "2017", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlotLabel(tt.tp, 0); got != tt.first {
				t.Errorf("SlotLabel(0) = %q, want %q", got, tt.first)
			}
			groups := MajorGroups(tt.tp)
			if len(groups) != len(tt.groups) {
				t.Fatalf("groups = %+v", groups)
			}
			last := 0
			for i, g := range groups {
				if g.Label != tt.groups[i] || g.First != last {
					t.Errorf("group %d = %+v", i, g)
				}
				last = g.Last
			}
			if len(groups) > 0 && last != tt.tp.SlotCount() {
				t.Errorf("groups end at %d of %d slots", last, tt.tp.SlotCount())
			}
		})
	}
}
