package profile

import (
	"sort"
	"strings"

	"timelinecal/internal/datemath"
)

// ViewSpec describes the date span a named view covers by default.
type ViewSpec struct {
	Name     string
	Duration datemath.Duration
	// Resource views group rows by resource; the date math is identical.
	Resource bool
}

var views = map[string]ViewSpec{}

func register(name string, d datemath.Duration) {
	views[name] = ViewSpec{Name: name, Duration: d}
	res := "resource" + strings.ToUpper(name[:1]) + name[1:]
	views[res] = ViewSpec{Name: res, Duration: d, Resource: true}
}

func init() {
	register("timeline", datemath.Days(1))
	register("timelineDay", datemath.Days(1))
	register("timelineWeek", datemath.Weeks(1))
	register("timelineMonth", datemath.Months(1))
	register("timelineYear", datemath.Years(1))
}

// LookupView returns the registered view spec for name.
func LookupView(name string) (ViewSpec, bool) {
	v, ok := views[name]
	return v, ok
}

// ViewNames lists every registered view, sorted.
func ViewNames() []string {
	names := make([]string, 0, len(views))
	for n := range views {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
