// internal/google/gmail.go
package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/aide/internal/types"
)

var _ types.MailAPI = (*GmailClient)(nil)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailClient talks to the Gmail v1 API for one mailbox.
type GmailClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewGmailClient creates a Gmail client with the given bearer token.
func NewGmailClient(token string) *GmailClient {
	return &GmailClient{
		token:   token,
		baseURL: gmailBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type messageRef struct {
	ID string `json:"id"`
}

type messageListResponse struct {
	Messages           []messageRef `json:"messages"`
	ResultSizeEstimate int          `json:"resultSizeEstimate"`
}

type messagePart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []messagePart `json:"parts"`
}

type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type messageResponse struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId"`
	LabelIDs []string `json:"labelIds"`
	Payload  struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		messagePart
	} `json:"payload"`
}

func (m *messageResponse) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (m *messageResponse) unread() bool {
	for _, l := range m.LabelIDs {
		if l == "UNREAD" {
			return true
		}
	}
	return false
}

// Search returns message summaries matching the Gmail query string.
func (g *GmailClient) Search(ctx context.Context, query string, limit int) ([]types.EmailSummary, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	q.Set("maxResults", fmt.Sprintf("%d", limit))

	var list messageListResponse
	if err := g.get(ctx, "/users/me/messages?"+q.Encode(), &list); err != nil {
		return nil, err
	}

	summaries := make([]types.EmailSummary, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var msg messageResponse
		path := "/users/me/messages/" + ref.ID + "?format=metadata&metadataHeaders=From&metadataHeaders=Subject&metadataHeaders=Date"
		if err := g.get(ctx, path, &msg); err != nil {
			return nil, err
		}
		summaries = append(summaries, types.EmailSummary{
			ID:      msg.ID,
			From:    msg.header("From"),
			Subject: msg.header("Subject"),
			Date:    parseMailDate(msg.header("Date")),
			Unread:  msg.unread(),
		})
	}
	return summaries, nil
}

// Get returns the full view of one message, decoding the text and HTML
// body parts.
func (g *GmailClient) Get(ctx context.Context, id string) (*types.EmailDetail, error) {
	var msg messageResponse
	if err := g.get(ctx, "/users/me/messages/"+url.PathEscape(id)+"?format=full", &msg); err != nil {
		return nil, err
	}

	detail := &types.EmailDetail{
		ID:      msg.ID,
		From:    msg.header("From"),
		To:      msg.header("To"),
		Subject: msg.header("Subject"),
		Date:    parseMailDate(msg.header("Date")),
	}
	detail.BodyText, detail.BodyHTML = extractBodies(msg.Payload.messagePart)
	return detail, nil
}

// UnreadCount returns the provider's estimate of unread inbox messages.
func (g *GmailClient) UnreadCount(ctx context.Context) (int, error) {
	var list messageListResponse
	if err := g.get(ctx, "/users/me/messages?q="+url.QueryEscape("is:unread in:inbox")+"&maxResults=1", &list); err != nil {
		return 0, err
	}
	return list.ResultSizeEstimate, nil
}

// Archive removes the message from the inbox.
func (g *GmailClient) Archive(ctx context.Context, id string) error {
	body := map[string]any{"removeLabelIds": []string{"INBOX"}}
	return g.post(ctx, "/users/me/messages/"+url.PathEscape(id)+"/modify", body)
}

// Trash moves the message to the trash.
func (g *GmailClient) Trash(ctx context.Context, id string) error {
	return g.post(ctx, "/users/me/messages/"+url.PathEscape(id)+"/trash", nil)
}

// MarkRead clears the unread flag on the message.
func (g *GmailClient) MarkRead(ctx context.Context, id string) error {
	body := map[string]any{"removeLabelIds": []string{"UNREAD"}}
	return g.post(ctx, "/users/me/messages/"+url.PathEscape(id)+"/modify", body)
}

// Send delivers a new plain-text message from the authenticated mailbox.
func (g *GmailClient) Send(ctx context.Context, to, subject, body string) error {
	headers := []string{
		"To: " + to,
		"Subject: " + subject,
		"Content-Type: text/plain; charset=UTF-8",
	}
	return g.post(ctx, "/users/me/messages/send", sendRequest{Raw: rawMessage(headers, body)})
}

// Reply sends a plain-text reply threaded onto the original message's
// conversation, addressed back to its sender.
func (g *GmailClient) Reply(ctx context.Context, id, body string) error {
	var orig messageResponse
	path := "/users/me/messages/" + url.PathEscape(id) + "?format=metadata&metadataHeaders=From&metadataHeaders=Subject&metadataHeaders=Message-ID"
	if err := g.get(ctx, path, &orig); err != nil {
		return err
	}

	subject := orig.header("Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	headers := []string{
		"To: " + orig.header("From"),
		"Subject: " + subject,
		"Content-Type: text/plain; charset=UTF-8",
	}
	if msgID := orig.header("Message-ID"); msgID != "" {
		headers = append(headers, "In-Reply-To: "+msgID, "References: "+msgID)
	}
	return g.post(ctx, "/users/me/messages/send", sendRequest{
		Raw:      rawMessage(headers, body),
		ThreadID: orig.ThreadID,
	})
}

// rawMessage builds the base64url RFC 822 payload the send endpoint takes.
func rawMessage(headers []string, body string) string {
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + body
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(msg))
}

// extractBodies walks the MIME tree collecting the first text/plain and
// text/html parts.
func extractBodies(part messagePart) (text, html string) {
	decode := func(data string) string {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
		if err != nil {
			return ""
		}
		return string(decoded)
	}

	var walk func(p messagePart)
	walk = func(p messagePart) {
		switch {
		case p.MimeType == "text/plain" && text == "" && p.Body.Data != "":
			text = decode(p.Body.Data)
		case p.MimeType == "text/html" && html == "" && p.Body.Data != "":
			html = decode(p.Body.Data)
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(part)
	return text, html
}

// parseMailDate tries the common RFC 5322 date layouts; a zero time means
// the header was missing or unparseable.
func parseMailDate(value string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", "2 Jan 2006 15:04:05 -0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (g *GmailClient) get(ctx context.Context, path string, out any) error {
	return doRequest(ctx, g.client, g.token, "gmail", http.MethodGet, g.baseURL+path, nil, out)
}

func (g *GmailClient) post(ctx context.Context, path string, body any) error {
	return doRequest(ctx, g.client, g.token, "gmail", http.MethodPost, g.baseURL+path, body, nil)
}
