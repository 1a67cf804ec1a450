// Package timeline turns a resolved DateProfile into slots, maps measured
// slot cells to pixel coordinates and answers hit-tests against them.
package timeline

import (
	"time"

	"timelinecal/internal/apperr"
	"timelinecal/internal/datemath"
	"timelinecal/internal/log"
	"timelinecal/internal/profile"
)

// MaxSlots bounds how many slots a single profile may produce.
const MaxSlots = 5000

// Params are the slot settings a Profile is built from.
type Params struct {
	Slot datemath.Duration
	// Snap defaults to Slot when zero.
	Snap datemath.Duration
	// StrictSnap rejects a snap that does not evenly divide the slot.
	StrictSnap bool
}

// Profile is the slot layout of one DateProfile. It is immutable; share the
// pointer instead of copying.
type Profile struct {
	// SlotDates holds every slot boundary, the terminal one included, so
	// slot i spans [SlotDates[i], SlotDates[i+1]).
	SlotDates    []time.Time
	IsWeekStarts []bool

	SlotDuration datemath.Duration
	SnapDuration datemath.Duration
	SnapsPerSlot int

	// IsTimeScale is set for sub-day slots. LargeUnit is week, month or
	// year for coarse slots and empty otherwise.
	IsTimeScale bool
	LargeUnit   datemath.Unit

	ActiveRange datemath.Range
}

// Build lays out the slots of dp.ActiveRange.
func Build(dp profile.DateProfile, env datemath.Env, p Params) (*Profile, error) {
	slot, snap := p.Slot, p.Snap
	if slot.IsZero() || slot.AsRoughMs() <= 0 {
		return nil, apperr.Config("slot_duration", "must be positive, got %s", slot)
	}
	if snap.IsZero() {
		snap = slot
	} else if snap.AsRoughMs() <= 0 {
		return nil, apperr.Config("snap_duration", "must be positive, got %s", snap)
	}

	perSlot, exact := snapsPerSlot(slot, snap)
	if !exact {
		if p.StrictSnap {
			return nil, apperr.Config("snap_duration", "%s does not evenly divide slot duration %s", snap, slot)
		}
		log.Warn("snap duration does not divide slot duration, snapping coarser",
			"slot_duration", slot.String(), "snap_duration", snap.String(), "snaps_per_slot", perSlot)
	}

	r := dp.ActiveRange
	if !r.Start.Before(r.End) {
		return nil, apperr.Config("visible_range", "active range %s is empty", r)
	}

	dates, err := slotDates(r, slot)
	if err != nil {
		return nil, err
	}

	tp := &Profile{
		SlotDates:    dates,
		IsWeekStarts: make([]bool, len(dates)),
		SlotDuration: slot,
		SnapDuration: snap,
		SnapsPerSlot: perSlot,
		IsTimeScale:  slot.HasTime(),
		ActiveRange:  r,
	}
	if !tp.IsTimeScale {
		switch unit, _ := slot.Denominator(); unit {
		case datemath.UnitWeek, datemath.UnitMonth, datemath.UnitYear:
			tp.LargeUnit = unit
		}
		for i, d := range dates {
			tp.IsWeekStarts[i] = env.IsWeekStart(d)
		}
	}
	return tp, nil
}

// slotDates multiplies from the range start on every step so month-end
// clamping never accumulates.
func slotDates(r datemath.Range, slot datemath.Duration) ([]time.Time, error) {
	dates := []time.Time{r.Start}
	prev := r.Start
	for i := 1; ; i++ {
		d := slot.Multiply(i).AddTo(r.Start)
		if !d.Before(r.End) {
			break
		}
		if !d.After(prev) {
			return nil, apperr.Config("slot_duration", "%s does not advance from %s", slot, datemath.FormatMarker(prev))
		}
		if i >= MaxSlots {
			return nil, apperr.Config("slot_duration", "%s yields more than %d slots over %s", slot, MaxSlots, r)
		}
		dates = append(dates, d)
		prev = d
	}
	return append(dates, r.End), nil
}

// snapsPerSlot divides the structured durations when they divide field by
// field, otherwise falls back to the rough millisecond ratio.
func snapsPerSlot(slot, snap datemath.Duration) (int, bool) {
	if n, ok := datemath.WholeDivide(slot, snap); ok && n > 0 {
		return n, true
	}
	sl, sn := slot.AsRoughMs(), snap.AsRoughMs()
	n := sl / sn
	if n < 1 {
		return 1, false
	}
	return int(n), n*sn == sl
}

// SlotCount is the number of rendered slots.
func (p *Profile) SlotCount() int {
	if len(p.SlotDates) == 0 {
		return 0
	}
	return len(p.SlotDates) - 1
}

// SlotRange is the half-open span of slot i.
func (p *Profile) SlotRange(i int) datemath.Range {
	return datemath.Range{Start: p.SlotDates[i], End: p.SlotDates[i+1]}
}

// SlotIndex returns the slot containing m.
func (p *Profile) SlotIndex(m time.Time) (int, bool) {
	n := p.SlotCount()
	if n == 0 || m.Before(p.SlotDates[0]) || !m.Before(p.SlotDates[n]) {
		return 0, false
	}
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.SlotDates[mid+1].After(m) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, true
}

// IsDay reports whether slots are whole days: neither a time scale nor a
// week, month or year unit.
func (p *Profile) IsDay() bool {
	return !p.IsTimeScale && p.LargeUnit == ""
}
