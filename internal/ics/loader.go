package ics

import (
	"context"
	"errors"
	"sync"
	"time"

	"timelinecal/internal/datemath"
	appLog "timelinecal/internal/log"
)

// DefaultTTL is how long fetched feeds are reused before the next request
// refetches them.
const DefaultTTL = 5 * time.Minute

// Loader keeps the parsed events of all sources and expands them on demand.
// Feeds are refetched when older than the TTL or on Refresh.
type Loader struct {
	fetcher *Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	env       datemath.Env
	sources   []Source
	inline    []ParsedEvent
	feeds     []ParsedEvent
	fetchedAt time.Time
}

func NewLoader(fetcher *Fetcher, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Loader{fetcher: fetcher, ttl: ttl, now: time.Now}
}

// Configure replaces the sources and inline events. Fetched feeds are
// dropped and refetched on the next use.
func (l *Loader) Configure(env datemath.Env, sources []Source, inline []ParsedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.env = env
	l.sources = sources
	l.inline = inline
	l.feeds = nil
	l.fetchedAt = time.Time{}
}

// Refresh fetches and parses every source now. Sources that fail keep
// contributing nothing; the joined error reports them.
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.RLock()
	sources, env := l.sources, l.env
	l.mu.RUnlock()

	feeds := make([]ParsedEvent, 0)
	var errs []error
	if len(sources) > 0 {
		results, fetchErrs := l.fetcher.FetchAll(ctx, sources)
		errs = append(errs, fetchErrs...)
		for _, res := range results {
			events, err := ParseICS(res.Source, res.Body, env.Location)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			feeds = append(feeds, events...)
		}
	}

	l.mu.Lock()
	l.feeds = feeds
	l.fetchedAt = l.now()
	l.mu.Unlock()

	if len(errs) > 0 {
		appLog.Warn("ics refresh incomplete", "sources", len(sources), "errors", len(errs))
	}
	return errors.Join(errs...)
}

// Occurrences expands every known event into window. Stale feeds are
// refetched first; fetch failures are logged and do not fail the call.
func (l *Loader) Occurrences(ctx context.Context, window datemath.Range) (ExpandResult, error) {
	l.mu.RLock()
	stale := len(l.sources) > 0 && l.now().Sub(l.fetchedAt) >= l.ttl
	l.mu.RUnlock()
	if stale {
		if err := l.Refresh(ctx); err != nil {
			appLog.Error("ics refresh failed", err)
		}
	}

	l.mu.RLock()
	events := make([]ParsedEvent, 0, len(l.inline)+len(l.feeds))
	events = append(events, l.inline...)
	events = append(events, l.feeds...)
	env := l.env
	l.mu.RUnlock()

	return ExpandOccurrences(events, ExpandConfig{Env: env, Window: window})
}
