// internal/calendar/aggregate.go
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/user/aide/internal/types"
)

// Engine merges events from every registered source into one ordered
// timeline, normalized to the configured display zone.
type Engine struct {
	api types.CalendarAPI
	loc *time.Location
}

// NewEngine creates an aggregation engine that renders times in loc.
func NewEngine(api types.CalendarAPI, loc *time.Location) *Engine {
	return &Engine{api: api, loc: loc}
}

// Location returns the display zone used for normalization.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// SourceResult is the outcome of querying one source: either its events or
// the reason it was unavailable. Failures stay isolated per source.
type SourceResult struct {
	Source types.CalendarSource
	Events []types.CalendarEvent
	Err    error
}

// ListUnified queries every source for [start, end), caps each at
// maxPerSource, and returns the merged timeline sorted by normalized start
// time with ties broken by source registration order. It returns
// types.ErrUnavailable only when no source could be queried at all; an
// empty merge from healthy sources is not an error.
func (e *Engine) ListUnified(ctx context.Context, sources []types.CalendarSource, start, end time.Time, maxPerSource int) ([]types.CalendarEvent, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no calendar sources: %w", types.ErrUnavailable)
	}

	var merged []types.CalendarEvent
	failures := 0

	for _, res := range e.querySources(ctx, sources, start, end, maxPerSource) {
		if res.Err != nil {
			failures++
			slog.Warn("calendar source query failed", "source", res.Source.Name, "error", res.Err)
			continue
		}
		merged = append(merged, res.Events...)
	}

	if failures == len(sources) {
		return nil, fmt.Errorf("all %d calendar sources failed: %w", failures, types.ErrUnavailable)
	}

	// Stable sort keeps concatenation order (= registration order) on ties.
	// On equal instants an all-day event leads a timed one: a timed event
	// starting at local midnight shares its key with that day's all-day
	// events.
	sort.SliceStable(merged, func(i, j int) bool {
		ki, kj := e.sortKey(merged[i]), e.sortKey(merged[j])
		if ki.Equal(kj) {
			return merged[i].AllDay && !merged[j].AllDay
		}
		return ki.Before(kj)
	})
	return merged, nil
}

// querySources runs one query per source and collects per-source results in
// registration order.
func (e *Engine) querySources(ctx context.Context, sources []types.CalendarSource, start, end time.Time, maxPerSource int) []SourceResult {
	results := make([]SourceResult, len(sources))
	for i, src := range sources {
		raw, err := e.api.ListEvents(ctx, src.SourceID, start, end, maxPerSource)
		if err != nil {
			results[i] = SourceResult{Source: src, Err: err}
			continue
		}
		events := make([]types.CalendarEvent, 0, len(raw))
		for _, r := range raw {
			ev, err := e.Normalize(r, src.Name)
			if err != nil {
				slog.Warn("skipping unparseable event", "source", src.Name, "event_id", r.ID, "error", err)
				continue
			}
			events = append(events, ev)
		}
		results[i] = SourceResult{Source: src, Events: events}
	}
	return results
}

// Normalize converts a raw provider event into the unified shape, tagging
// it with the source name and converting instants to the display zone. An
// event without an end time becomes a zero-duration point event.
func (e *Engine) Normalize(raw types.RawEvent, sourceName string) (types.CalendarEvent, error) {
	start, allDay, err := parseEventTime(raw.Start, e.loc)
	if err != nil {
		return types.CalendarEvent{}, fmt.Errorf("parse start %q: %w", raw.Start, err)
	}

	end := start
	if raw.End != "" {
		end, _, err = parseEventTime(raw.End, e.loc)
		if err != nil {
			return types.CalendarEvent{}, fmt.Errorf("parse end %q: %w", raw.End, err)
		}
	}

	title := raw.Title
	if title == "" {
		title = "Untitled Event"
	}

	return types.CalendarEvent{
		ExternalID:  raw.ID,
		Title:       title,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Source:      sourceName,
		Location:    raw.Location,
		Description: raw.Description,
		Attendees:   raw.Attendees,
	}, nil
}

// sortKey is the UTC-normalized start for timed events and local midnight
// for all-day events, so an all-day event leads every timed event on the
// same local date.
func (e *Engine) sortKey(ev types.CalendarEvent) time.Time {
	if ev.AllDay {
		y, m, d := ev.Start.In(e.loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, e.loc).UTC()
	}
	return ev.Start.UTC()
}

// parseEventTime accepts an RFC 3339 instant or a bare date. Bare dates
// mark all-day events anchored at local midnight.
func parseEventTime(value string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), false, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return d, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time format")
}
