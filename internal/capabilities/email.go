// internal/capabilities/email.go
package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/aide/internal/dispatch"
	"github.com/user/aide/internal/types"
)

const (
	emailDefaultLimit = 10
	emailMaxLimit     = 25
	emailBodyCap      = 4000
	inboxSummaryLimit = 5
)

// Email bundles the mailbox capabilities around the mail API.
type Email struct {
	api types.MailAPI
}

// NewEmail creates the email capability set.
func NewEmail(api types.MailAPI) *Email {
	return &Email{api: api}
}

// RegisterAll plugs every email capability into the dispatch registry.
func (e *Email) RegisterAll(reg *dispatch.Registry) {
	reg.Register(dispatch.Capability{
		Name:        "get_recent_emails",
		Description: "List the most recent inbox messages",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "description": "How many messages to list (default: 10, max: 25)"},
				"unread_only": {"type": "boolean", "description": "Only unread messages"}
			}
		}`),
		Handler: e.recentEmails,
	})
	reg.Register(dispatch.Capability{
		Name:        "search_emails",
		Description: "Search the mailbox with a query (sender, subject, or free text)",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query"},
				"limit": {"type": "integer", "description": "How many results (default: 10, max: 25)"}
			},
			"required": ["query"]
		}`),
		Handler: e.searchEmails,
	})
	reg.Register(dispatch.Capability{
		Name:        "get_email_details",
		Description: "Read the full body of one message by id",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email_id": {"type": "string", "description": "Message id from a previous listing"}
			},
			"required": ["email_id"]
		}`),
		Handler: e.emailDetails,
	})
	reg.Register(dispatch.Capability{
		Name:        "get_unread_count",
		Description: "Count unread inbox messages",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler:     e.unreadCount,
	})
	reg.Register(dispatch.Capability{
		Name:        "get_inbox_summary",
		Description: "Unread count plus the latest unread messages",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Handler:     e.inboxSummary,
	})
	reg.Register(dispatch.Capability{
		Name:        "send_email",
		Description: "Send a new email from the user's mailbox",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"to": {"type": "string", "description": "Recipient address"},
				"subject": {"type": "string", "description": "Subject line"},
				"body": {"type": "string", "description": "Plain-text body"}
			},
			"required": ["to", "subject", "body"]
		}`),
		Handler: e.sendEmail,
	})
	reg.Register(dispatch.Capability{
		Name:        "reply_to_email",
		Description: "Reply to a message, keeping it on the same conversation",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email_id": {"type": "string", "description": "Message id from a previous listing"},
				"body": {"type": "string", "description": "Plain-text reply body"}
			},
			"required": ["email_id", "body"]
		}`),
		Handler: e.replyToEmail,
	})
	reg.Register(dispatch.Capability{
		Name:        "mark_email_as_read",
		Description: "Mark a message as read",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email_id": {"type": "string", "description": "Message id from a previous listing"}
			},
			"required": ["email_id"]
		}`),
		Handler: e.markRead,
	})
	reg.Register(dispatch.Capability{
		Name:        "archive_email",
		Description: "Archive a message out of the inbox",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email_id": {"type": "string", "description": "Message id from a previous listing"}
			},
			"required": ["email_id"]
		}`),
		Handler: e.archiveEmail,
	})
	reg.Register(dispatch.Capability{
		Name:        "delete_email",
		Description: "Move a message to the trash",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"email_id": {"type": "string", "description": "Message id from a previous listing"}
			},
			"required": ["email_id"]
		}`),
		Handler: e.deleteEmail,
	})
}

func (e *Email) recentEmails(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Limit      int  `json:"limit"`
		UnreadOnly bool `json:"unread_only"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}

	query := "in:inbox"
	if params.UnreadOnly {
		query = "is:unread in:inbox"
	}
	return e.listMessages(ctx, query, params.Limit, "Recent emails")
}

func (e *Email) searchEmails(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}
	return e.listMessages(ctx, params.Query, params.Limit, fmt.Sprintf("Search %q", params.Query))
}

func (e *Email) listMessages(ctx context.Context, query string, limit int, heading string) (string, error) {
	if limit <= 0 {
		limit = emailDefaultLimit
	}
	if limit > emailMaxLimit {
		limit = emailMaxLimit
	}

	summaries, err := e.api.Search(ctx, query, limit)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	if len(summaries) == 0 {
		return heading + ": no messages found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d messages\n", heading, len(summaries))
	for i, msg := range summaries {
		marker := " "
		if msg.Unread {
			marker = "*"
		}
		date := ""
		if !msg.Date.IsZero() {
			date = msg.Date.Format("01/02 15:04")
		}
		fmt.Fprintf(&sb, "%d.%s [%s] %s\n   From: %s (id: %s)\n", i+1, marker, date, msg.Subject, msg.From, msg.ID)
	}
	return sb.String(), nil
}

func (e *Email) emailDetails(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EmailID string `json:"email_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	detail, err := e.api.Get(ctx, params.EmailID)
	if err != nil {
		return "", fmt.Errorf("get message %s: %w", params.EmailID, err)
	}

	body := detail.BodyText
	if body == "" && detail.BodyHTML != "" {
		// HTML-only messages get converted so the model sees readable text.
		converted, err := htmltomarkdown.ConvertString(detail.BodyHTML)
		if err != nil {
			body = "(could not render HTML body)"
		} else {
			body = converted
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		body = "(empty body)"
	}
	if len(body) > emailBodyCap {
		body = body[:emailBodyCap] + "\n[body truncated]"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\nTo: %s\nSubject: %s\n", detail.From, detail.To, detail.Subject)
	if !detail.Date.IsZero() {
		fmt.Fprintf(&sb, "Date: %s\n", detail.Date.Format("Mon, 2 Jan 2006 15:04"))
	}
	sb.WriteString("\n")
	sb.WriteString(body)
	return sb.String(), nil
}

func (e *Email) unreadCount(ctx context.Context, _ json.RawMessage) (string, error) {
	n, err := e.api.UnreadCount(ctx)
	if err != nil {
		return "", fmt.Errorf("count unread: %w", err)
	}
	switch n {
	case 0:
		return "Inbox zero: no unread messages.", nil
	case 1:
		return "1 unread message in the inbox.", nil
	default:
		return fmt.Sprintf("%d unread messages in the inbox.", n), nil
	}
}

func (e *Email) inboxSummary(ctx context.Context, _ json.RawMessage) (string, error) {
	countLine, err := e.unreadCount(ctx, nil)
	if err != nil {
		return "", err
	}

	summaries, err := e.api.Search(ctx, "is:unread in:inbox", inboxSummaryLimit)
	if err != nil {
		return "", fmt.Errorf("list unread: %w", err)
	}
	if len(summaries) == 0 {
		return countLine, nil
	}

	var sb strings.Builder
	sb.WriteString(countLine)
	sb.WriteString("\nLatest unread:\n")
	for i, msg := range summaries {
		fmt.Fprintf(&sb, "%d. %s\n   From: %s (id: %s)\n", i+1, msg.Subject, msg.From, msg.ID)
	}
	return sb.String(), nil
}

func (e *Email) sendEmail(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if strings.TrimSpace(params.To) == "" {
		return "", fmt.Errorf("recipient must not be empty")
	}
	if strings.TrimSpace(params.Body) == "" {
		return "", fmt.Errorf("body must not be empty")
	}
	if err := e.api.Send(ctx, params.To, params.Subject, params.Body); err != nil {
		return "", fmt.Errorf("send to %s: %w", params.To, err)
	}
	return fmt.Sprintf("Sent %q to %s.", params.Subject, params.To), nil
}

func (e *Email) replyToEmail(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EmailID string `json:"email_id"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if strings.TrimSpace(params.Body) == "" {
		return "", fmt.Errorf("body must not be empty")
	}
	if err := e.api.Reply(ctx, params.EmailID, params.Body); err != nil {
		return "", fmt.Errorf("reply to %s: %w", params.EmailID, err)
	}
	return fmt.Sprintf("Replied to message %s.", params.EmailID), nil
}

func (e *Email) markRead(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EmailID string `json:"email_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if err := e.api.MarkRead(ctx, params.EmailID); err != nil {
		return "", fmt.Errorf("mark %s read: %w", params.EmailID, err)
	}
	return fmt.Sprintf("Marked message %s as read.", params.EmailID), nil
}

func (e *Email) archiveEmail(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EmailID string `json:"email_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if err := e.api.Archive(ctx, params.EmailID); err != nil {
		return "", fmt.Errorf("archive %s: %w", params.EmailID, err)
	}
	return fmt.Sprintf("Archived message %s.", params.EmailID), nil
}

func (e *Email) deleteEmail(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EmailID string `json:"email_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if err := e.api.Trash(ctx, params.EmailID); err != nil {
		return "", fmt.Errorf("trash %s: %w", params.EmailID, err)
	}
	return fmt.Sprintf("Moved message %s to trash.", params.EmailID), nil
}
