// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// CalendarAPI is the narrow contract the aggregation engine and calendar
// capabilities consume. Implementations wrap ErrNotFound / ErrForbidden on
// the corresponding provider failures.
type CalendarAPI interface {
	ListEvents(ctx context.Context, sourceID string, start, end time.Time, limit int) ([]RawEvent, error)
	CreateEvent(ctx context.Context, sourceID string, event RawEvent) (RawEvent, error)
	UpdateEvent(ctx context.Context, sourceID, eventID string, event RawEvent) (RawEvent, error)
	DeleteEvent(ctx context.Context, sourceID, eventID string) error
}

// MailAPI is the contract the email capabilities consume. Reply threads
// the new message onto the original's conversation.
type MailAPI interface {
	Search(ctx context.Context, query string, limit int) ([]EmailSummary, error)
	Get(ctx context.Context, id string) (*EmailDetail, error)
	UnreadCount(ctx context.Context) (int, error)
	Archive(ctx context.Context, id string) error
	Trash(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
	Send(ctx context.Context, to, subject, body string) error
	Reply(ctx context.Context, id, body string) error
}

// ThreadStore persists the user→thread mapping so conversations survive
// restarts. At most one thread id per user; Put replaces any existing entry.
type ThreadStore interface {
	Get(userID UserID) (ThreadID, bool, error)
	Put(userID UserID, threadID ThreadID) error
}
