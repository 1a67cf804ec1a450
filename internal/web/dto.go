package web

import (
	"timelinecal/internal/datemath"
	"timelinecal/internal/model"
	"timelinecal/internal/profile"
	"timelinecal/internal/render"
	"timelinecal/internal/timeline"
	"timelinecal/internal/view"
)

// Dates leave the server as wall-clock strings of the display timezone,
// never as instants.

type rangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func toRangeDTO(r datemath.Range) rangeDTO {
	return rangeDTO{Start: datemath.FormatMarker(r.Start), End: datemath.FormatMarker(r.End)}
}

type dateProfileDTO struct {
	ViewType         string            `json:"view_type"`
	CurrentDate      string            `json:"current_date"`
	CurrentRange     rangeDTO          `json:"current_range"`
	CurrentRangeUnit datemath.Unit     `json:"current_range_unit"`
	ActiveRange      rangeDTO          `json:"active_range"`
	IsRangeAllDay    bool              `json:"is_range_all_day"`
	DateIncrement    datemath.Duration `json:"date_increment"`
}

func toDateProfileDTO(dp profile.DateProfile) dateProfileDTO {
	return dateProfileDTO{
		ViewType:         dp.ViewType,
		CurrentDate:      datemath.FormatMarker(dp.CurrentDate),
		CurrentRange:     toRangeDTO(dp.CurrentRange),
		CurrentRangeUnit: dp.CurrentRangeUnit,
		ActiveRange:      toRangeDTO(dp.ActiveRange),
		IsRangeAllDay:    dp.IsRangeAllDay,
		DateIncrement:    dp.DateIncrement,
	}
}

type slotDTO struct {
	Index       int    `json:"index"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Label       string `json:"label"`
	IsWeekStart bool   `json:"is_week_start,omitempty"`
}

// profileResponse is the JSON response shape for /api/profile.
type profileResponse struct {
	DateProfile     dateProfileDTO    `json:"date_profile"`
	SlotDuration    datemath.Duration `json:"slot_duration"`
	SnapDuration    datemath.Duration `json:"snap_duration"`
	SnapsPerSlot    int               `json:"snaps_per_slot"`
	IsTimeScale     bool              `json:"is_time_scale"`
	LargeUnit       datemath.Unit     `json:"large_unit,omitempty"`
	IsRtl           bool              `json:"is_rtl"`
	ScrollTime      datemath.Duration `json:"scroll_time"`
	DisplayTimeZone string            `json:"display_timezone"`
	WeekStart       string            `json:"week_start"`
	Slots           []slotDTO         `json:"slots"`
}

func toProfileResponse(snap view.Snapshot, weekStart string) profileResponse {
	tp := snap.Profile
	slots := make([]slotDTO, 0, tp.SlotCount())
	for i := 0; i < tp.SlotCount(); i++ {
		r := tp.SlotRange(i)
		slots = append(slots, slotDTO{
			Index:       i,
			Start:       datemath.FormatMarker(r.Start),
			End:         datemath.FormatMarker(r.End),
			Label:       render.SlotLabel(tp, i),
			IsWeekStart: tp.IsWeekStarts[i],
		})
	}
	return profileResponse{
		DateProfile:     toDateProfileDTO(snap.DateProfile),
		SlotDuration:    tp.SlotDuration,
		SnapDuration:    tp.SnapDuration,
		SnapsPerSlot:    tp.SnapsPerSlot,
		IsTimeScale:     tp.IsTimeScale,
		LargeUnit:       tp.LargeUnit,
		IsRtl:           snap.IsRtl,
		ScrollTime:      snap.ScrollTime,
		DisplayTimeZone: snap.Env.Location.String(),
		WeekStart:       weekStart,
		Slots:           slots,
	}
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	SourceID    string   `json:"source_id"`
	UID         string   `json:"uid"`
	InstanceKey string   `json:"instance_key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	ResourceIDs []string `json:"resource_ids,omitempty"`
	AllDay      bool     `json:"all_day"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
}

func toOccurrenceDTO(occ model.Occurrence) occurrenceDTO {
	return occurrenceDTO{
		SourceID:    occ.SourceID,
		UID:         occ.UID,
		InstanceKey: occ.InstanceKey,
		Summary:     occ.Summary,
		Description: occ.Description,
		Location:    occ.Location,
		ResourceIDs: occ.ResourceIDs,
		AllDay:      occ.AllDay,
		Start:       datemath.FormatMarker(occ.Start),
		End:         datemath.FormatMarker(occ.DefaultEnd()),
	}
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Resources       []model.Resource `json:"resources"`
	Occurrences     []occurrenceDTO  `json:"occurrences"`
	TruncatedUIDs   []string         `json:"truncated_uids,omitempty"`
	Range           rangeDTO         `json:"range"`
	DisplayTimeZone string           `json:"display_timezone"`
	WeekStart       string           `json:"week_start"`
}

// gridDTO describes how the client laid the slots out.
type gridDTO struct {
	ClientWidth  int `json:"client_width"`
	MinSlotWidth int `json:"min_slot_width"`
	Origin       int `json:"origin"`
}

// viewDTO mirrors the query parameters of the GET endpoints.
type viewDTO struct {
	View  string `json:"view"`
	Date  string `json:"date"`
	Slot  string `json:"slot"`
	Snap  string `json:"snap"`
	Start string `json:"start"`
	End   string `json:"end"`
	Shift int    `json:"shift"`
}

func (v viewDTO) overrides() view.Overrides {
	return view.Overrides{View: v.View, Date: v.Date, Slot: v.Slot, Snap: v.Snap, Start: v.Start, End: v.End, Shift: v.Shift}
}

type hitRequest struct {
	X    float64 `json:"x"`
	Grid gridDTO `json:"grid"`
	View viewDTO `json:"view"`
}

type hitDTO struct {
	SlotIndex int     `json:"slot_index"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	AllDay    bool    `json:"all_day"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

func toHitDTO(h timeline.Hit) *hitDTO {
	return &hitDTO{
		SlotIndex: h.SlotIndex,
		Start:     datemath.FormatMarker(h.DateSpan.Range.Start),
		End:       datemath.FormatMarker(h.DateSpan.Range.End),
		AllDay:    h.DateSpan.AllDay,
		Left:      h.Left,
		Right:     h.Right,
	}
}

// hitResponse carries a nil hit when x is outside every slot.
type hitResponse struct {
	Hit *hitDTO `json:"hit"`
}

type dragRequest struct {
	Kind             string  `json:"kind"`
	InstanceKey      string  `json:"instance_key"`
	OriginX          float64 `json:"origin_x"`
	X                float64 `json:"x"`
	OriginResourceID string  `json:"origin_resource_id"`
	ResourceID       string  `json:"resource_id"`
	Grid             gridDTO `json:"grid"`
	View             viewDTO `json:"view"`
}

type dragResponse struct {
	Kind       string        `json:"kind"`
	Occurrence occurrenceDTO `json:"occurrence"`
}
