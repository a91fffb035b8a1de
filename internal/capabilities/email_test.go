// internal/capabilities/email_test.go
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/aide/internal/types"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailAPI struct {
	summaries  []types.EmailSummary
	details    map[string]*types.EmailDetail
	unread     int
	archived   []string
	trashed    []string
	markedRead []string
	sent       []sentMail
	replies    map[string]string
	lastQuery  string
	lastLimit  int
}

func (f *fakeMailAPI) Search(ctx context.Context, query string, limit int) ([]types.EmailSummary, error) {
	f.lastQuery = query
	f.lastLimit = limit
	if limit < len(f.summaries) {
		return f.summaries[:limit], nil
	}
	return f.summaries, nil
}

func (f *fakeMailAPI) Get(ctx context.Context, id string) (*types.EmailDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, types.ErrNotFound)
	}
	return d, nil
}

func (f *fakeMailAPI) UnreadCount(ctx context.Context) (int, error) { return f.unread, nil }

func (f *fakeMailAPI) Archive(ctx context.Context, id string) error {
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeMailAPI) Trash(ctx context.Context, id string) error {
	f.trashed = append(f.trashed, id)
	return nil
}

func (f *fakeMailAPI) MarkRead(ctx context.Context, id string) error {
	f.markedRead = append(f.markedRead, id)
	return nil
}

func (f *fakeMailAPI) Send(ctx context.Context, to, subject, body string) error {
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailAPI) Reply(ctx context.Context, id, body string) error {
	if f.replies == nil {
		f.replies = map[string]string{}
	}
	f.replies[id] = body
	return nil
}

func TestRecentEmails(t *testing.T) {
	api := &fakeMailAPI{summaries: []types.EmailSummary{
		{ID: "m1", From: "alice@example.com", Subject: "Lunch?", Date: time.Now(), Unread: true},
		{ID: "m2", From: "bob@example.com", Subject: "Report", Date: time.Now()},
	}}
	e := NewEmail(api)

	out, err := e.recentEmails(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Lunch?") || !strings.Contains(out, "alice@example.com") {
		t.Errorf("listing incomplete: %q", out)
	}
	if !strings.Contains(out, "id: m1") {
		t.Errorf("message ids must be listed for follow-up calls: %q", out)
	}
	if api.lastQuery != "in:inbox" {
		t.Errorf("unexpected query %q", api.lastQuery)
	}
}

func TestRecentEmailsUnreadOnly(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)
	if _, err := e.recentEmails(context.Background(), json.RawMessage(`{"unread_only": true}`)); err != nil {
		t.Fatal(err)
	}
	if api.lastQuery != "is:unread in:inbox" {
		t.Errorf("unexpected query %q", api.lastQuery)
	}
}

func TestRecentEmailsMalformedArgs(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)
	if _, err := e.recentEmails(context.Background(), json.RawMessage(`{"limit":`)); err == nil {
		t.Fatal("malformed args must error, not degrade to defaults")
	}
	if api.lastQuery != "" {
		t.Errorf("search ran despite malformed args: %q", api.lastQuery)
	}
}

func TestSearchEmailsCapsLimit(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)
	if _, err := e.searchEmails(context.Background(), json.RawMessage(`{"query": "from:alice", "limit": 500}`)); err != nil {
		t.Fatal(err)
	}
	if api.lastLimit != emailMaxLimit {
		t.Errorf("limit not capped: %d", api.lastLimit)
	}
}

func TestSearchEmailsEmptyQuery(t *testing.T) {
	e := NewEmail(&fakeMailAPI{})
	if _, err := e.searchEmails(context.Background(), json.RawMessage(`{"query": "  "}`)); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestEmailDetailsPlainText(t *testing.T) {
	api := &fakeMailAPI{details: map[string]*types.EmailDetail{
		"m1": {ID: "m1", From: "alice@example.com", To: "me@example.com", Subject: "Hi", BodyText: "plain body"},
	}}
	e := NewEmail(api)

	out, err := e.emailDetails(context.Background(), json.RawMessage(`{"email_id": "m1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "plain body") || !strings.Contains(out, "Subject: Hi") {
		t.Errorf("details incomplete: %q", out)
	}
}

func TestEmailDetailsHTMLConverted(t *testing.T) {
	api := &fakeMailAPI{details: map[string]*types.EmailDetail{
		"m1": {ID: "m1", Subject: "Hi", BodyHTML: "<p>Hello <strong>world</strong></p>"},
	}}
	e := NewEmail(api)

	out, err := e.emailDetails(context.Background(), json.RawMessage(`{"email_id": "m1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Hello") || !strings.Contains(out, "world") {
		t.Errorf("HTML body not rendered: %q", out)
	}
	if strings.Contains(out, "<p>") {
		t.Errorf("raw HTML leaked into output: %q", out)
	}
}

func TestUnreadCountWording(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "Inbox zero"},
		{1, "1 unread message"},
		{7, "7 unread messages"},
	}
	for _, tc := range cases {
		e := NewEmail(&fakeMailAPI{unread: tc.n})
		out, err := e.unreadCount(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, tc.want) {
			t.Errorf("count %d: expected %q in %q", tc.n, tc.want, out)
		}
	}
}

func TestInboxSummaryListsUnread(t *testing.T) {
	api := &fakeMailAPI{
		unread: 2,
		summaries: []types.EmailSummary{
			{ID: "m1", From: "alice@example.com", Subject: "Lunch?", Unread: true},
			{ID: "m2", From: "bob@example.com", Subject: "Report", Unread: true},
		},
	}
	e := NewEmail(api)

	out, err := e.inboxSummary(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2 unread messages") {
		t.Errorf("count missing: %q", out)
	}
	if !strings.Contains(out, "Lunch?") || !strings.Contains(out, "id: m2") {
		t.Errorf("unread listing incomplete: %q", out)
	}
	if api.lastQuery != "is:unread in:inbox" {
		t.Errorf("unexpected query %q", api.lastQuery)
	}
}

func TestInboxSummaryEmptyInbox(t *testing.T) {
	e := NewEmail(&fakeMailAPI{})
	out, err := e.inboxSummary(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Inbox zero") || strings.Contains(out, "Latest unread") {
		t.Errorf("empty inbox not stated plainly: %q", out)
	}
}

func TestSendEmail(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)

	args := json.RawMessage(`{"to": "alice@example.com", "subject": "Hi", "body": "See you at noon."}`)
	out, err := e.sendEmail(context.Background(), args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(api.sent))
	}
	if api.sent[0].to != "alice@example.com" || api.sent[0].body != "See you at noon." {
		t.Errorf("send not routed: %+v", api.sent[0])
	}
	if !strings.Contains(out, "alice@example.com") {
		t.Errorf("confirmation incomplete: %q", out)
	}
}

func TestSendEmailRejectsBlankFields(t *testing.T) {
	e := NewEmail(&fakeMailAPI{})
	if _, err := e.sendEmail(context.Background(), json.RawMessage(`{"to": " ", "subject": "x", "body": "y"}`)); err == nil {
		t.Error("expected error for blank recipient")
	}
	if _, err := e.sendEmail(context.Background(), json.RawMessage(`{"to": "a@b.c", "subject": "x", "body": ""}`)); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestReplyToEmail(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)

	if _, err := e.replyToEmail(context.Background(), json.RawMessage(`{"email_id": "m1", "body": "Sounds good."}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.replies["m1"] != "Sounds good." {
		t.Errorf("reply not routed: %v", api.replies)
	}
}

func TestMarkEmailAsRead(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)

	if _, err := e.markRead(context.Background(), json.RawMessage(`{"email_id": "m1"}`)); err != nil {
		t.Fatal(err)
	}
	if len(api.markedRead) != 1 || api.markedRead[0] != "m1" {
		t.Errorf("mark-read not routed: %v", api.markedRead)
	}
}

func TestArchiveAndDelete(t *testing.T) {
	api := &fakeMailAPI{}
	e := NewEmail(api)

	if _, err := e.archiveEmail(context.Background(), json.RawMessage(`{"email_id": "m1"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.deleteEmail(context.Background(), json.RawMessage(`{"email_id": "m2"}`)); err != nil {
		t.Fatal(err)
	}
	if len(api.archived) != 1 || api.archived[0] != "m1" {
		t.Errorf("archive not routed: %v", api.archived)
	}
	if len(api.trashed) != 1 || api.trashed[0] != "m2" {
		t.Errorf("trash not routed: %v", api.trashed)
	}
}
