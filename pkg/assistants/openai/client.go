package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/aide/pkg/assistants"
)

// Config holds the connection settings for the OpenAI Assistants API.
type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string
}

// Client implements assistants.Provider against the OpenAI Assistants v2
// REST API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a client with the given configuration.
func New(config *Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runResponse struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// CreateThread creates a new durable conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var resp threadResponse
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// AddMessage appends a user message to the thread.
func (c *Client) AddMessage(ctx context.Context, threadID, text string) error {
	body := map[string]string{"role": "user", "content": text}
	return c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil)
}

// CreateRun starts a reasoning pass over the thread.
func (c *Client) CreateRun(ctx context.Context, threadID string) (string, error) {
	var resp runResponse
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", runRequest{AssistantID: c.config.AssistantID}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetRun fetches the run's status and any pending tool calls.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*assistants.Run, error) {
	var resp runResponse
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &resp); err != nil {
		return nil, err
	}

	run := &assistants.Run{
		ID:       resp.ID,
		ThreadID: resp.ThreadID,
		Status:   assistants.RunStatus(resp.Status),
	}
	if resp.RequiredAction != nil {
		for _, tc := range resp.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.ToolCalls = append(run.ToolCalls, assistants.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	return run, nil
}

// SubmitToolOutputs reports the outputs for a requires_action batch. All
// outputs go up in one request; the API rejects partial submissions.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistants.ToolOutput) error {
	body := map[string]any{"tool_outputs": outputs}
	return c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs/"+runID+"/submit_tool_outputs", body, nil)
}

// LatestAssistantMessage returns the newest assistant-authored text in the
// thread.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var resp messageList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?limit=5&order=desc", nil, &resp); err != nil {
		return "", err
	}
	for _, msg := range resp.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, part := range msg.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("no assistant message in thread %s", threadID)
}

// do issues one API request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", assistants.ErrNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
