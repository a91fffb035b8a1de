// internal/types/models.go
package types

import "time"

// Candidate is a configured calendar identity before reachability probing.
type Candidate struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"` // e.g. "personal", "work", "family"
}

// CalendarSource is a calendar identity that passed the startup probe.
// The registry holding these never mutates after probing completes.
type CalendarSource struct {
	Name     string
	SourceID string
	Kind     string
}

// CalendarEvent is the provider-independent, timezone-normalized event
// shape produced by the aggregation engine.
type CalendarEvent struct {
	ExternalID  string
	Title       string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Source      string
	Location    string
	Description string
	Attendees   []string
}

// RawEvent is what a calendar collaborator returns before normalization.
// Start and End carry either RFC 3339 instants or bare dates for all-day
// events, matching the wire shape of the provider.
type RawEvent struct {
	ID          string
	Title       string
	Start       string
	End         string
	Location    string
	Description string
	Attendees   []string
	HTMLLink    string
}

// EmailSummary is a single message header row from a mail search.
type EmailSummary struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	Unread  bool
}

// EmailDetail is the full view of one message.
type EmailDetail struct {
	ID       string
	From     string
	To       string
	Subject  string
	Date     time.Time
	BodyText string
	BodyHTML string
}
