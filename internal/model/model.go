package model

import "time"

// Resource is a row of the timeline (a room, a person, a machine).
type Resource struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Event represents a logical calendar event before recurrence expansion.
type Event struct {
	SourceID string // calendar source ID (e.g., config ICS ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	// ResourceIDs are the rows the event is drawn on. Empty means the
	// source's default resource.
	ResourceIDs []string

	AllDay bool

	// Original start/end in the event's own timezone.
	Start time.Time
	End   time.Time
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string `json:"source_id"`
	UID      string `json:"uid"`

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, typically derived from the local start time.
	InstanceKey string `json:"instance_key"`

	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	ResourceIDs []string `json:"resource_ids,omitempty"`

	AllDay bool `json:"all_day"`

	// Start / End are markers: UTC-coded wall clock of the display timezone.
	// A zero End means the source gave no end.
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HasResource reports whether the occurrence is drawn on resource id.
func (o Occurrence) HasResource(id string) bool {
	for _, r := range o.ResourceIDs {
		if r == id {
			return true
		}
	}
	return false
}

// DefaultEnd returns End, or the start plus one day (all-day) or one hour
// (timed) when the occurrence has no end.
func (o Occurrence) DefaultEnd() time.Time {
	if !o.End.IsZero() {
		return o.End
	}
	if o.AllDay {
		return o.Start.AddDate(0, 0, 1)
	}
	return o.Start.Add(time.Hour)
}
