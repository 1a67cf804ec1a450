// Package view resolves what a timeline render shows: the date profile,
// its slot profile, the resource rows and the events inside the range.
package view

import (
	"context"
	"sync"
	"time"

	"timelinecal/internal/apperr"
	"timelinecal/internal/config"
	"timelinecal/internal/datemath"
	"timelinecal/internal/ics"
	appLog "timelinecal/internal/log"
	"timelinecal/internal/model"
	"timelinecal/internal/profile"
	"timelinecal/internal/timeline"
)

// UnassignedResourceID is the row for events that name no resource.
const UnassignedResourceID = ""

// Overrides adjust a single render. Empty fields fall back to the config.
type Overrides struct {
	View  string
	Date  string
	Slot  string
	Snap  string
	Start string
	End   string
	// Shift moves the resolved range by whole date increments.
	Shift int
}

// Snapshot is everything needed to draw one render.
type Snapshot struct {
	Env         datemath.Env
	DateProfile profile.DateProfile
	Profile     *timeline.Profile
	IsRtl       bool
	ScrollTime  datemath.Duration
	Resources   []model.Resource
	Occurrences []model.Occurrence
	Truncated   []string
}

// RowOccurrences returns the occurrences drawn on the row of resourceID.
func (s Snapshot) RowOccurrences(resourceID string) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	for _, occ := range s.Occurrences {
		if resourceID == UnassignedResourceID && len(occ.ResourceIDs) == 0 {
			out = append(out, occ)
			continue
		}
		if occ.HasResource(resourceID) {
			out = append(out, occ)
		}
	}
	return out
}

type Option func(*Controller)

// WithEvents makes snapshots carry the events of loader.
func WithEvents(loader *ics.Loader) Option {
	return func(c *Controller) { c.loader = loader }
}

// Controller owns the active configuration. It is safe for concurrent use.
type Controller struct {
	mu     sync.RWMutex
	cfg    *config.Config
	env    datemath.Env
	policy profile.Policy

	cache  timeline.Cache
	loader *ics.Loader
}

func New(cfg *config.Config, opts ...Option) (*Controller, error) {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.SetConfig(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// SetConfig swaps the active configuration. On error the previous one stays
// in place.
func (c *Controller) SetConfig(cfg *config.Config) error {
	env, err := cfg.Env()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy(env)
	if err != nil {
		return err
	}
	if _, ok := profile.LookupView(cfg.InitialView); !ok {
		return apperr.Config("initial_view", "unknown view type %q", cfg.InitialView)
	}
	var inline []ics.ParsedEvent
	if c.loader != nil {
		if inline, err = ics.InlineEvents(cfg, env); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.cfg, c.env, c.policy = cfg, env, policy
	c.cache.Reset()
	c.mu.Unlock()

	if c.loader != nil {
		c.loader.Configure(env, ics.Sources(cfg), inline)
	}
	appLog.Info("view config applied",
		"view", cfg.InitialView,
		"timezone", cfg.Timezone,
		"resources", len(cfg.Resources),
		"ics_sources", len(cfg.ICS),
	)
	return nil
}

// Config returns the active configuration. Callers must not modify it.
func (c *Controller) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *Controller) Env() datemath.Env {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.env
}

// Resolve computes the date and slot profiles for a render at now.
func (c *Controller) Resolve(now time.Time, o Overrides) (profile.DateProfile, *timeline.Profile, error) {
	c.mu.RLock()
	cfg, env, policy := c.cfg, c.env, c.policy
	c.mu.RUnlock()

	viewType := firstNonEmpty(o.View, cfg.InitialView)

	anchor := env.ToMarker(now)
	if date := firstNonEmpty(o.Date, cfg.InitialDate); date != "" {
		m, _, err := env.ParseMarker(date)
		if err != nil {
			return profile.DateProfile{}, nil, apperr.Config("date", "%v", err)
		}
		anchor = m
	}

	if o.Start != "" || o.End != "" {
		vr, err := profile.ParseVisibleRange(env, o.Start, o.End)
		if err != nil {
			return profile.DateProfile{}, nil, err
		}
		policy.VisibleRange = vr
	}

	slot, err := durationOverride("slot_duration", o.Slot, cfg.SlotDuration)
	if err != nil {
		return profile.DateProfile{}, nil, err
	}
	snap, err := durationOverride("snap_duration", o.Snap, cfg.SnapDuration)
	if err != nil {
		return profile.DateProfile{}, nil, err
	}
	if !slot.IsZero() {
		policy.ExpandToDays = !slot.HasTime()
	}

	dp, err := profile.Resolve(env, policy, anchor, viewType)
	if err != nil {
		return profile.DateProfile{}, nil, err
	}
	if o.Shift != 0 {
		policy, anchor = profile.Shift(policy, dp, o.Shift)
		if dp, err = profile.Resolve(env, policy, anchor, viewType); err != nil {
			return profile.DateProfile{}, nil, err
		}
	}

	if slot.IsZero() {
		slot = timeline.AutoSlotDuration(dp)
		if !slot.HasTime() && !policy.ExpandToDays {
			policy.ExpandToDays = true
			if dp, err = profile.Resolve(env, policy, anchor, viewType); err != nil {
				return profile.DateProfile{}, nil, err
			}
		}
		appLog.Debug("slot duration chosen automatically", "slot", slot.String(), "range", dp.ActiveRange.String())
	}

	tp, err := c.cache.Get(dp, env, timeline.Params{Slot: slot, Snap: snap, StrictSnap: cfg.StrictSnap})
	if err != nil {
		return profile.DateProfile{}, nil, err
	}
	return dp, tp, nil
}

// Snapshot resolves a render and collects its rows and events. Event source
// failures are logged; the snapshot is still returned without them.
func (c *Controller) Snapshot(ctx context.Context, now time.Time, o Overrides) (Snapshot, error) {
	dp, tp, err := c.Resolve(now, o)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.RLock()
	cfg, env := c.cfg, c.env
	c.mu.RUnlock()

	snap := Snapshot{
		Env:         env,
		DateProfile: dp,
		Profile:     tp,
		IsRtl:       cfg.IsRtl(),
		ScrollTime:  cfg.ScrollTime,
		Resources:   append([]model.Resource(nil), cfg.Resources...),
		Occurrences: []model.Occurrence{},
	}

	if c.loader != nil {
		res, err := c.loader.Occurrences(ctx, dp.ActiveRange)
		if err != nil {
			appLog.Error("view events failed", err, "range", dp.ActiveRange.String())
		} else {
			snap.Occurrences = res.Occurrences
			snap.Truncated = res.TruncatedEvents
		}
	}

	snap.Resources = withUnassignedRow(snap.Resources, snap.Occurrences)
	return snap, nil
}

// Refresh refetches every event source now.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.loader == nil {
		return nil
	}
	return c.loader.Refresh(ctx)
}

func withUnassignedRow(resources []model.Resource, occs []model.Occurrence) []model.Resource {
	needed := len(resources) == 0
	for _, occ := range occs {
		if len(occ.ResourceIDs) == 0 {
			needed = true
			break
		}
	}
	if !needed {
		return resources
	}
	for _, r := range resources {
		if r.ID == UnassignedResourceID {
			return resources
		}
	}
	return append(resources, model.Resource{ID: UnassignedResourceID, Title: "Unassigned"})
}

func durationOverride(field, raw string, def datemath.Duration) (datemath.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := datemath.ParseDuration(raw)
	if err != nil {
		return datemath.Duration{}, apperr.Config(field, "%v", err)
	}
	return d, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
