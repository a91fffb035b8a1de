// internal/google/calendar.go

// Package google provides minimal REST clients for the Google Calendar and
// Gmail APIs, implementing the collaborator interfaces the core consumes.
// Credential provisioning is out of scope; clients take a bearer token.
package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/user/aide/internal/types"
)

// Compile-time interface compliance checks.
var _ types.CalendarAPI = (*CalendarClient)(nil)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// CalendarClient talks to the Google Calendar v3 API.
type CalendarClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewCalendarClient creates a calendar client with the given bearer token.
func NewCalendarClient(token string) *CalendarClient {
	return &CalendarClient{
		token:   token,
		baseURL: calendarBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// wireEvent is the Google Calendar event shape, start/end carrying either
// a dateTime instant or a bare date for all-day events.
type wireEvent struct {
	ID      string `json:"id,omitempty"`
	Summary string `json:"summary,omitempty"`
	Start   struct {
		DateTime string `json:"dateTime,omitempty"`
		Date     string `json:"date,omitempty"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime,omitempty"`
		Date     string `json:"date,omitempty"`
	} `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Attendees   []struct {
		Email string `json:"email"`
	} `json:"attendees,omitempty"`
	HTMLLink string `json:"htmlLink,omitempty"`
}

type eventList struct {
	Items []wireEvent `json:"items"`
}

func (w wireEvent) toRaw() types.RawEvent {
	raw := types.RawEvent{
		ID:          w.ID,
		Title:       w.Summary,
		Location:    w.Location,
		Description: w.Description,
		HTMLLink:    w.HTMLLink,
	}
	if w.Start.DateTime != "" {
		raw.Start = w.Start.DateTime
	} else {
		raw.Start = w.Start.Date
	}
	if w.End.DateTime != "" {
		raw.End = w.End.DateTime
	} else {
		raw.End = w.End.Date
	}
	for _, a := range w.Attendees {
		raw.Attendees = append(raw.Attendees, a.Email)
	}
	return raw
}

func fromRaw(event types.RawEvent) wireEvent {
	var w wireEvent
	w.Summary = event.Title
	w.Location = event.Location
	w.Description = event.Description
	if len(event.Start) == len("2006-01-02") {
		w.Start.Date = event.Start
		w.End.Date = event.End
	} else {
		w.Start.DateTime = event.Start
		w.End.DateTime = event.End
	}
	return w
}

// ListEvents returns up to limit single events in [start, end) for the
// calendar, ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, sourceID string, start, end time.Time, limit int) ([]types.RawEvent, error) {
	q := url.Values{}
	q.Set("timeMin", start.UTC().Format(time.RFC3339))
	q.Set("timeMax", end.UTC().Format(time.RFC3339))
	q.Set("maxResults", fmt.Sprintf("%d", limit))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	path := "/calendars/" + url.PathEscape(sourceID) + "/events?" + q.Encode()
	var list eventList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}

	events := make([]types.RawEvent, 0, len(list.Items))
	for _, item := range list.Items {
		events = append(events, item.toRaw())
	}
	return events, nil
}

// CreateEvent inserts an event into the calendar.
func (c *CalendarClient) CreateEvent(ctx context.Context, sourceID string, event types.RawEvent) (types.RawEvent, error) {
	var created wireEvent
	path := "/calendars/" + url.PathEscape(sourceID) + "/events"
	if err := c.do(ctx, http.MethodPost, path, fromRaw(event), &created); err != nil {
		return types.RawEvent{}, err
	}
	return created.toRaw(), nil
}

// UpdateEvent replaces the event's mutable fields.
func (c *CalendarClient) UpdateEvent(ctx context.Context, sourceID, eventID string, event types.RawEvent) (types.RawEvent, error) {
	var updated wireEvent
	path := "/calendars/" + url.PathEscape(sourceID) + "/events/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodPut, path, fromRaw(event), &updated); err != nil {
		return types.RawEvent{}, err
	}
	return updated.toRaw(), nil
}

// DeleteEvent removes the event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, sourceID, eventID string) error {
	path := "/calendars/" + url.PathEscape(sourceID) + "/events/" + url.PathEscape(eventID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *CalendarClient) do(ctx context.Context, method, path string, body, out any) error {
	return doRequest(ctx, c.client, c.token, "calendar", method, c.baseURL+path, body, out)
}
