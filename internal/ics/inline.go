package ics

import (
	"time"

	"github.com/google/uuid"

	"timelinecal/internal/apperr"
	"timelinecal/internal/config"
	"timelinecal/internal/datemath"
)

// InlineSourceID is the source ID of events written into the config file.
const InlineSourceID = "inline"

// uidNamespace seeds the name-based UIDs of inline events without an id,
// so the same event keeps its UID across reloads.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("timelinecal:inline"))

// Sources lists the ICS subscriptions of cfg. A source without an ID falls
// back to its name, then its URL.
func Sources(cfg *config.Config) []Source {
	sources := make([]Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			if c.Name != "" {
				id = c.Name
			} else {
				id = c.URL
			}
		}
		sources = append(sources, Source{ID: id, URL: c.URL, ResourceID: c.ResourceID})
	}
	return sources
}

// InlineEvents converts the events of cfg into parsed events. Dates are
// display-zone wall clock; a date without a time makes an all-day event.
func InlineEvents(cfg *config.Config, env datemath.Env) ([]ParsedEvent, error) {
	out := make([]ParsedEvent, 0, len(cfg.Events))
	for i, ec := range cfg.Events {
		ev, err := inlineEvent(ec, env)
		if err != nil {
			return nil, apperr.Config("events", "event %d (%q): %v", i, ec.Title, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func inlineEvent(ec config.EventConfig, env datemath.Env) (ParsedEvent, error) {
	start, hasTime, err := env.ParseMarker(ec.Start)
	if err != nil {
		return ParsedEvent{}, err
	}
	allDay := ec.AllDay || !hasTime
	if allDay {
		start = datemath.StartOfDay(start)
	}

	var end time.Time
	if ec.End != "" {
		if end, _, err = env.ParseMarker(ec.End); err != nil {
			return ParsedEvent{}, err
		}
	}
	switch {
	case end.IsZero() && allDay:
		end = start.AddDate(0, 0, 1)
	case end.IsZero():
		end = start.Add(time.Hour)
	case !end.After(start):
		return ParsedEvent{}, apperr.Config("events.end", "%s is not after %s", ec.End, ec.Start)
	}

	uid := ec.ID
	if uid == "" {
		uid = uuid.NewSHA1(uidNamespace, []byte(ec.Title+"|"+ec.Start+"|"+ec.ResourceID)).String()
	}

	ev := ParsedEvent{
		Source:   Source{ID: InlineSourceID, ResourceID: ec.ResourceID},
		UID:      uid,
		Summary:  ec.Title,
		AllDay:   allDay,
		RawRRule: ec.RRule,
	}
	if allDay {
		ev.Start, ev.End = start, end
	} else {
		ev.Start, ev.End = env.FromMarker(start), env.FromMarker(end)
	}
	return ev, nil
}
