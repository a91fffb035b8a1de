// internal/capabilities/calendar.go

// Package capabilities implements the tool handlers the assistant can
// invoke through the dispatch registry: calendar views and edits, email,
// weather, and web research. Handlers return renderable text; failures
// become error text at the dispatch layer.
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/aide/internal/calendar"
	"github.com/user/aide/internal/dispatch"
	"github.com/user/aide/internal/types"
)

const (
	scheduleMaxPerSource = 50
	scheduleDisplayCap   = 15
	searchDaysAhead      = 30
)

// Calendar bundles the calendar capabilities around the aggregation engine
// and the probed source registry.
type Calendar struct {
	engine   *calendar.Engine
	api      types.CalendarAPI
	registry *calendar.Registry
}

// NewCalendar creates the calendar capability set.
func NewCalendar(engine *calendar.Engine, api types.CalendarAPI, registry *calendar.Registry) *Calendar {
	return &Calendar{engine: engine, api: api, registry: registry}
}

// RegisterAll plugs every calendar capability into the dispatch registry.
func (c *Calendar) RegisterAll(reg *dispatch.Registry) {
	reg.Register(dispatch.Capability{
		Name:        "get_today_schedule",
		Description: "List today's events across all calendars in start-time order",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler:     c.todaySchedule,
	})
	reg.Register(dispatch.Capability{
		Name:        "get_upcoming_events",
		Description: "List events for the coming days grouped by date",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"days": {"type": "integer", "description": "How many days ahead to look (default: 7)"}
			}
		}`),
		Handler: c.upcomingEvents,
	})
	reg.Register(dispatch.Capability{
		Name:        "get_morning_briefing",
		Description: "Today's schedule plus a preview of tomorrow",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler:     c.morningBriefing,
	})
	reg.Register(dispatch.Capability{
		Name:        "find_free_time",
		Description: "Find open working-hour slots of a given length",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"duration_minutes": {"type": "integer", "description": "Slot length in minutes (default: 60)"},
				"days_ahead": {"type": "integer", "description": "How many days ahead to search (default: 7)"}
			}
		}`),
		Handler: c.freeTime,
	})
	reg.Register(dispatch.Capability{
		Name:        "create_calendar_event",
		Description: "Create an event on one of the calendars",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "description": "Event title"},
				"start_time": {"type": "string", "description": "Start, ISO date or date-time"},
				"end_time": {"type": "string", "description": "End, ISO date or date-time"},
				"source": {"type": "string", "description": "Target calendar name or kind"},
				"description": {"type": "string", "description": "Optional description"}
			},
			"required": ["title", "start_time", "end_time"]
		}`),
		Handler: c.createEvent,
	})
	reg.Register(dispatch.Capability{
		Name:        "update_calendar_event",
		Description: "Update the title, times, or description of an existing event found by title search",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"event_search": {"type": "string", "description": "Title substring identifying the event"},
				"new_title": {"type": "string"},
				"new_start_time": {"type": "string"},
				"new_end_time": {"type": "string"},
				"new_description": {"type": "string"}
			},
			"required": ["event_search"]
		}`),
		Handler: c.updateEvent,
	})
	reg.Register(dispatch.Capability{
		Name:        "reschedule_event",
		Description: "Move an existing event to a new start time, keeping its duration unless an end is given",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"event_search": {"type": "string", "description": "Title substring identifying the event"},
				"new_start_time": {"type": "string", "description": "New start, ISO date or date-time"},
				"new_end_time": {"type": "string", "description": "Optional new end"}
			},
			"required": ["event_search", "new_start_time"]
		}`),
		Handler: c.rescheduleEvent,
	})
	reg.Register(dispatch.Capability{
		Name:        "move_event",
		Description: "Move an event to a different calendar",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"event_search": {"type": "string", "description": "Title substring identifying the event"},
				"target_source": {"type": "string", "description": "Destination calendar name or kind"}
			},
			"required": ["event_search", "target_source"]
		}`),
		Handler: c.moveEvent,
	})
	reg.Register(dispatch.Capability{
		Name:        "delete_calendar_event",
		Description: "Delete an event found by title search",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"event_search": {"type": "string", "description": "Title substring identifying the event"}
			},
			"required": ["event_search"]
		}`),
		Handler: c.deleteEvent,
	})
}

func (c *Calendar) todaySchedule(ctx context.Context, _ json.RawMessage) (string, error) {
	loc := c.engine.Location()
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	events, err := c.engine.ListUnified(ctx, c.registry.Sources(), dayStart, dayStart.AddDate(0, 0, 1), scheduleMaxPerSource)
	if err != nil {
		return "", describeUnavailable(err)
	}
	if len(events) == 0 {
		return "Today's schedule: no events found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Today's schedule: %d events\n", len(events))
	for i, ev := range events {
		if i >= scheduleDisplayCap {
			fmt.Fprintf(&sb, "...and %d more\n", len(events)-scheduleDisplayCap)
			break
		}
		sb.WriteString(formatEventLine(ev, loc))
	}
	return sb.String(), nil
}

func (c *Calendar) upcomingEvents(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Days int `json:"days"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}
	if params.Days <= 0 {
		params.Days = 7
	}

	loc := c.engine.Location()
	now := time.Now().In(loc)
	events, err := c.engine.ListUnified(ctx, c.registry.Sources(), now, now.AddDate(0, 0, params.Days), scheduleMaxPerSource)
	if err != nil {
		return "", describeUnavailable(err)
	}
	if len(events) == 0 {
		return fmt.Sprintf("Upcoming %d days: no events found.", params.Days), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Upcoming %d days: %d events\n", params.Days, len(events))
	lastDate := ""
	for _, ev := range events {
		date := ev.Start.In(loc).Format("Mon 01/02")
		if date != lastDate {
			fmt.Fprintf(&sb, "\n%s\n", date)
			lastDate = date
		}
		sb.WriteString(formatEventLine(ev, loc))
	}
	return sb.String(), nil
}

func (c *Calendar) morningBriefing(ctx context.Context, _ json.RawMessage) (string, error) {
	return c.Briefing(ctx)
}

// Briefing builds the morning briefing: today's full schedule and up to
// four tomorrow events. Also used by the scheduler for pushed briefings.
func (c *Calendar) Briefing(ctx context.Context) (string, error) {
	loc := c.engine.Location()
	now := time.Now().In(loc)

	today, err := c.todaySchedule(ctx, nil)
	if err != nil {
		return "", err
	}

	tomorrowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	tomorrow, err := c.engine.ListUnified(ctx, c.registry.Sources(), tomorrowStart, tomorrowStart.AddDate(0, 0, 1), scheduleMaxPerSource)
	if err != nil {
		return "", describeUnavailable(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Morning briefing for %s\n\n%s\n", now.Format("Monday, January 2"), today)
	if len(tomorrow) == 0 {
		sb.WriteString("\nTomorrow: clear schedule.\n")
	} else {
		sb.WriteString("\nTomorrow preview:\n")
		for i, ev := range tomorrow {
			if i >= 4 {
				break
			}
			sb.WriteString(formatEventLine(ev, loc))
		}
	}
	return sb.String(), nil
}

func (c *Calendar) freeTime(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		DurationMinutes int `json:"duration_minutes"`
		DaysAhead       int `json:"days_ahead"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}
	if params.DurationMinutes <= 0 {
		params.DurationMinutes = 60
	}
	if params.DaysAhead <= 0 {
		params.DaysAhead = 7
	}

	slots, err := c.engine.FindFreeTime(ctx, c.registry.Sources(), time.Now(),
		time.Duration(params.DurationMinutes)*time.Minute, params.DaysAhead, 5)
	if err != nil {
		return "", describeUnavailable(err)
	}
	if len(slots) == 0 {
		return fmt.Sprintf("No %d-minute slots free in the next %d days.", params.DurationMinutes, params.DaysAhead), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Available %d-minute slots:\n", params.DurationMinutes)
	for i, slot := range slots {
		fmt.Fprintf(&sb, "%d. %s at %s\n", i+1, slot.Start.Format("Monday, January 2"), slot.Start.Format("15:04"))
	}
	return sb.String(), nil
}

func (c *Calendar) createEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Title       string `json:"title"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		Source      string `json:"source"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	target, err := c.resolveSource(params.Source)
	if err != nil {
		return "", err
	}

	loc := c.engine.Location()
	start, err := parseWhen(params.StartTime, loc, 15)
	if err != nil {
		return "", fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := parseWhen(params.EndTime, loc, 16)
	if err != nil {
		return "", fmt.Errorf("invalid end_time: %w", err)
	}

	created, err := c.api.CreateEvent(ctx, target.SourceID, types.RawEvent{
		Title:       params.Title,
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		Description: params.Description,
	})
	if err != nil {
		return "", fmt.Errorf("create %q: %w", params.Title, err)
	}

	return fmt.Sprintf("Created %q on %s\n%s, %s - %s\n%s",
		params.Title, target.Name,
		start.Format("Monday, January 2, 2006"), start.Format("15:04"), end.Format("15:04"),
		created.HTMLLink), nil
}

func (c *Calendar) updateEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventSearch    string  `json:"event_search"`
		NewTitle       *string `json:"new_title"`
		NewStartTime   *string `json:"new_start_time"`
		NewEndTime     *string `json:"new_end_time"`
		NewDescription *string `json:"new_description"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	found, src, err := c.engine.FindEvent(ctx, c.registry.Sources(), time.Now(), params.EventSearch, searchDaysAhead)
	if err != nil {
		return "", err
	}

	loc := c.engine.Location()
	raw := eventToRaw(found)
	var changed []string

	if params.NewTitle != nil {
		raw.Title = *params.NewTitle
		changed = append(changed, "title -> "+raw.Title)
	}
	if params.NewStartTime != nil {
		start, err := parseWhen(*params.NewStartTime, loc, found.Start.In(loc).Hour())
		if err != nil {
			return "", fmt.Errorf("invalid new_start_time: %w", err)
		}
		raw.Start = start.Format(time.RFC3339)
		changed = append(changed, "start -> "+start.Format("01/02 15:04"))
	}
	if params.NewEndTime != nil {
		end, err := parseWhen(*params.NewEndTime, loc, found.End.In(loc).Hour())
		if err != nil {
			return "", fmt.Errorf("invalid new_end_time: %w", err)
		}
		raw.End = end.Format(time.RFC3339)
		changed = append(changed, "end -> "+end.Format("01/02 15:04"))
	}
	if params.NewDescription != nil {
		raw.Description = *params.NewDescription
		changed = append(changed, "description updated")
	}
	if len(changed) == 0 {
		return "", fmt.Errorf("nothing to update for %q", params.EventSearch)
	}

	updated, err := c.api.UpdateEvent(ctx, src.SourceID, found.ExternalID, raw)
	if err != nil {
		return "", fmt.Errorf("update %q: %w", found.Title, err)
	}
	return fmt.Sprintf("Updated %q on %s: %s", updated.Title, src.Name, strings.Join(changed, ", ")), nil
}

func (c *Calendar) rescheduleEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventSearch  string `json:"event_search"`
		NewStartTime string `json:"new_start_time"`
		NewEndTime   string `json:"new_end_time"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	found, src, err := c.engine.FindEvent(ctx, c.registry.Sources(), time.Now(), params.EventSearch, searchDaysAhead)
	if err != nil {
		return "", err
	}

	loc := c.engine.Location()
	start, err := parseWhen(params.NewStartTime, loc, found.Start.In(loc).Hour())
	if err != nil {
		return "", fmt.Errorf("invalid new_start_time: %w", err)
	}

	var end time.Time
	if params.NewEndTime != "" {
		end, err = parseWhen(params.NewEndTime, loc, found.End.In(loc).Hour())
		if err != nil {
			return "", fmt.Errorf("invalid new_end_time: %w", err)
		}
	} else {
		end = start.Add(found.End.Sub(found.Start))
	}

	raw := eventToRaw(found)
	raw.Start = start.Format(time.RFC3339)
	raw.End = end.Format(time.RFC3339)

	updated, err := c.api.UpdateEvent(ctx, src.SourceID, found.ExternalID, raw)
	if err != nil {
		return "", fmt.Errorf("reschedule %q: %w", found.Title, err)
	}
	return fmt.Sprintf("Rescheduled %q to %s, %s - %s on %s",
		updated.Title, start.Format("Monday, January 2"),
		start.Format("15:04"), end.Format("15:04"), src.Name), nil
}

func (c *Calendar) moveEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventSearch  string `json:"event_search"`
		TargetSource string `json:"target_source"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	found, src, err := c.engine.FindEvent(ctx, c.registry.Sources(), time.Now(), params.EventSearch, searchDaysAhead)
	if err != nil {
		return "", err
	}
	target, err := c.resolveSource(params.TargetSource)
	if err != nil {
		return "", err
	}
	if target.SourceID == src.SourceID {
		return fmt.Sprintf("%q is already on %s.", found.Title, target.Name), nil
	}

	// Copy first, delete only once the copy exists.
	if _, err := c.api.CreateEvent(ctx, target.SourceID, eventToRaw(found)); err != nil {
		return "", fmt.Errorf("copy %q to %s: %w", found.Title, target.Name, err)
	}
	if err := c.api.DeleteEvent(ctx, src.SourceID, found.ExternalID); err != nil {
		return "", fmt.Errorf("remove %q from %s after copy: %w", found.Title, src.Name, err)
	}
	return fmt.Sprintf("Moved %q: %s -> %s", found.Title, src.Name, target.Name), nil
}

func (c *Calendar) deleteEvent(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventSearch string `json:"event_search"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	found, src, err := c.engine.FindEvent(ctx, c.registry.Sources(), time.Now(), params.EventSearch, searchDaysAhead)
	if err != nil {
		return "", err
	}
	if err := c.api.DeleteEvent(ctx, src.SourceID, found.ExternalID); err != nil {
		return "", fmt.Errorf("delete %q: %w", found.Title, err)
	}
	return fmt.Sprintf("Deleted %q from %s.", found.Title, src.Name), nil
}

// resolveSource picks the target calendar: exact kind match, then name or
// kind keyword match, then the first registered source when no hint given.
func (c *Calendar) resolveSource(hint string) (types.CalendarSource, error) {
	sources := c.registry.Sources()
	if len(sources) == 0 {
		return types.CalendarSource{}, fmt.Errorf("no calendar sources: %w", types.ErrUnavailable)
	}
	if hint == "" {
		return sources[0], nil
	}

	needle := strings.ToLower(hint)
	for _, src := range sources {
		if needle == strings.ToLower(src.Kind) {
			return src, nil
		}
	}
	for _, src := range sources {
		if strings.Contains(strings.ToLower(src.Name), needle) || strings.Contains(strings.ToLower(src.Kind), needle) {
			return src, nil
		}
	}

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = fmt.Sprintf("%s (%s)", src.Name, src.Kind)
	}
	return types.CalendarSource{}, fmt.Errorf("no calendar matching %q; available: %s", hint, strings.Join(names, ", "))
}

// formatEventLine renders one timeline entry: local 24-hour time for timed
// events, "All Day" otherwise, tagged with the source name.
func formatEventLine(ev types.CalendarEvent, loc *time.Location) string {
	if ev.AllDay {
		return fmt.Sprintf("- All Day: %s (%s)\n", ev.Title, ev.Source)
	}
	return fmt.Sprintf("- %s: %s (%s)\n", ev.Start.In(loc).Format("15:04"), ev.Title, ev.Source)
}

// parseWhen accepts an RFC 3339 date-time or a bare date; bare dates get
// the fallback hour in the display zone.
func parseWhen(value string, loc *time.Location, fallbackHour int) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
		return t, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return d.Add(time.Duration(fallbackHour) * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// eventToRaw converts a normalized event back to the provider shape for
// updates and copies.
func eventToRaw(ev types.CalendarEvent) types.RawEvent {
	raw := types.RawEvent{
		ID:          ev.ExternalID,
		Title:       ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Attendees:   ev.Attendees,
	}
	if ev.AllDay {
		raw.Start = ev.Start.Format("2006-01-02")
		raw.End = ev.End.Format("2006-01-02")
	} else {
		raw.Start = ev.Start.Format(time.RFC3339)
		raw.End = ev.End.Format(time.RFC3339)
	}
	return raw
}

// describeUnavailable keeps "calendar unavailable" distinct from an empty
// schedule when surfacing engine errors as tool output.
func describeUnavailable(err error) error {
	return fmt.Errorf("calendar unavailable: %w", err)
}
